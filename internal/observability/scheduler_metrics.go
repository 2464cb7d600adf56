package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

const (
	metricActiveWorkers  = "lintsched.scheduler.workers.active"
	metricPendingBatches = "lintsched.scheduler.batches.pending"
	metricObservedRSS    = "lintsched.scheduler.rss.observed_bytes"

	metricBatchesCompleted = "lintsched.scheduler.batches.completed"
	metricBatchesFailed    = "lintsched.scheduler.batches.failed"
	metricBisections       = "lintsched.scheduler.batches.bisected"
	metricAdmissionBlocked = "lintsched.scheduler.admission.blocked"
)

// SchedulerGauges reports the live state of one scheduler run as
// OTel observable gauges, sampled on demand by the callback registered
// with the meter, which runs when the Prometheus exporter is scraped — never polled directly by the
// reactor loop, so instrumentation never adds a blocking call to the
// scheduling hot path.
type SchedulerGauges struct {
	activeWorkers  metric.Int64ObservableGauge
	pendingBatches metric.Int64ObservableGauge
	observedRSS    metric.Int64ObservableGauge

	snapshot func() (activeWorkers, pendingBatches int, observedRSS int64)
}

// NewSchedulerGauges creates the observable gauges and registers a
// callback that reads live state via snapshot at each collection tick.
// snapshot must be safe to call concurrently with the reactor loop (the
// Prometheus scrape that triggers collection runs on its own goroutine).
func NewSchedulerGauges(mt metric.Meter, snapshot func() (activeWorkers, pendingBatches int, observedRSS int64)) (*SchedulerGauges, error) {
	active, err := mt.Int64ObservableGauge(metricActiveWorkers,
		metric.WithDescription("Currently active worker processes"),
		metric.WithUnit("{worker}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricActiveWorkers, err)
	}

	pending, err := mt.Int64ObservableGauge(metricPendingBatches,
		metric.WithDescription("Batches queued but not yet dispatched to a worker"),
		metric.WithUnit("{batch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricPendingBatches, err)
	}

	rss, err := mt.Int64ObservableGauge(metricObservedRSS,
		metric.WithDescription("Total RSS observed across the master and active workers"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricObservedRSS, err)
	}

	sg := &SchedulerGauges{activeWorkers: active, pendingBatches: pending, observedRSS: rss, snapshot: snapshot}

	_, err = mt.RegisterCallback(sg.observe, active, pending, rss)
	if err != nil {
		return nil, fmt.Errorf("register scheduler gauges callback: %w", err)
	}

	return sg, nil
}

func (sg *SchedulerGauges) observe(_ context.Context, obs metric.Observer) error {
	activeWorkers, pendingBatches, observedRSS := sg.snapshot()

	obs.ObserveInt64(sg.activeWorkers, int64(activeWorkers))
	obs.ObserveInt64(sg.pendingBatches, int64(pendingBatches))
	obs.ObserveInt64(sg.observedRSS, observedRSS)

	return nil
}

// SchedulerCounters tracks cumulative scheduler events the reactor loop
// reports synchronously as they happen (unlike SchedulerGauges, these
// have no meaningful "current value" to sample on demand).
type SchedulerCounters struct {
	batchesCompleted metric.Int64Counter
	batchesFailed    metric.Int64Counter
	bisections       metric.Int64Counter
	admissionBlocked metric.Int64Counter
}

// NewSchedulerCounters builds the counter instruments.
func NewSchedulerCounters(mt metric.Meter) (*SchedulerCounters, error) {
	b := newMetricBuilder(mt)

	sc := &SchedulerCounters{
		batchesCompleted: b.counter(metricBatchesCompleted, "Batches that completed successfully", "{batch}"),
		batchesFailed:    b.counter(metricBatchesFailed, "Batches permanently marked failed", "{batch}"),
		bisections:       b.counter(metricBisections, "Batches bisected for retry after a classified failure", "{batch}"),
		admissionBlocked: b.counter(metricAdmissionBlocked, "Spawn attempts deferred by the admission controller", "{attempt}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return sc, nil
}

// RecordCompleted increments the completed-batch counter.
func (sc *SchedulerCounters) RecordCompleted(ctx context.Context) {
	sc.batchesCompleted.Add(ctx, 1)
}

// RecordFailed increments the failed-batch counter.
func (sc *SchedulerCounters) RecordFailed(ctx context.Context) {
	sc.batchesFailed.Add(ctx, 1)
}

// RecordBisected increments the bisection counter.
func (sc *SchedulerCounters) RecordBisected(ctx context.Context) {
	sc.bisections.Add(ctx, 1)
}

// RecordAdmissionBlocked increments the admission-blocked counter.
func (sc *SchedulerCounters) RecordAdmissionBlocked(ctx context.Context) {
	sc.admissionBlocked.Add(ctx, 1)
}
