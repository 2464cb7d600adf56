package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricBatchesDispatched = "lintsched.batch.dispatched"
	metricBatchDuration     = "lintsched.batch.duration.seconds"
	metricBatchErrors       = "lintsched.batch.errors"
	metricBatchesInflight   = "lintsched.batch.inflight"

	attrClass  = "class"
	attrStatus = "status"

	statusError = "error"
)

// durationBucketBoundaries covers 10ms to 600s: a single-file batch can
// finish sub-second, a worst-case bisection leaf against a slow
// analyzer can run for minutes.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// BatchMetrics holds the OTel instruments for batch dispatch and
// completion, following a Rate/Error/Duration shape applied to worker
// batches instead of inbound requests.
type BatchMetrics struct {
	dispatched metric.Int64Counter
	duration   metric.Float64Histogram
	errors     metric.Int64Counter
	inflight   metric.Int64UpDownCounter
}

// NewBatchMetrics creates the batch RED instruments from the given meter.
func NewBatchMetrics(mt metric.Meter) (*BatchMetrics, error) {
	b := newMetricBuilder(mt)

	bm := &BatchMetrics{
		dispatched: b.counter(metricBatchesDispatched, "Total batches dispatched to a worker", "{batch}"),
		duration:   b.histogram(metricBatchDuration, "Batch lint duration in seconds", "s", durationBucketBoundaries...),
		errors:     b.counter(metricBatchErrors, "Total batches that ended in a classified failure", "{batch}"),
		inflight:   b.upDownCounter(metricBatchesInflight, "Batches currently assigned to a running worker", "{batch}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return bm, nil
}

// RecordDispatch marks one batch as handed to a newly spawned worker.
func (bm *BatchMetrics) RecordDispatch(ctx context.Context) func(ctx context.Context, status, class string, duration time.Duration) {
	bm.dispatched.Add(ctx, 1)
	bm.inflight.Add(ctx, 1)

	return func(ctx context.Context, status, class string, duration time.Duration) {
		bm.inflight.Add(ctx, -1)

		attrs := metric.WithAttributes(attribute.String(attrStatus, status), attribute.String(attrClass, class))
		bm.duration.Record(ctx, duration.Seconds(), attrs)

		if status == statusError {
			bm.errors.Add(ctx, 1, metric.WithAttributes(attribute.String(attrClass, class)))
		}
	}
}
