package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
)

// DiagnosticsServer exposes health, readiness, and Prometheus metrics
// endpoints over HTTP for operational monitoring of one scheduler run.
type DiagnosticsServer struct {
	server   *http.Server
	listener net.Listener

	Gauges   *SchedulerGauges
	Counters *SchedulerCounters
	Batch    *BatchMetrics
}

// Snapshot is the scheduler state NewDiagnosticsServer polls to serve the
// active-workers / pending-batches / observed-RSS gauges.
type Snapshot func() (activeWorkers, pendingBatches int, observedRSS int64)

// NewDiagnosticsServer starts an HTTP server at addr with /healthz, /readyz,
// and /metrics endpoints, and registers the scheduler and batch instruments
// against a fresh Prometheus registry. snapshot may be nil, in which case
// the active-workers/pending-batches/observed-RSS gauges always report zero.
func NewDiagnosticsServer(addr, meterName string, snapshot Snapshot, readyChecks ...ReadyCheck) (*DiagnosticsServer, error) {
	if snapshot == nil {
		snapshot = func() (int, int, int64) { return 0, 0, 0 }
	}

	mux := http.NewServeMux()

	mux.Handle("/healthz", HealthHandler())
	mux.Handle("/readyz", ReadyHandler(readyChecks...))

	metricsHandler, meter, err := PrometheusHandler(meterName)
	if err != nil {
		return nil, fmt.Errorf("create prometheus handler: %w", err)
	}

	mux.Handle("/metrics", metricsHandler)

	gauges, err := NewSchedulerGauges(meter, snapshot)
	if err != nil {
		return nil, fmt.Errorf("register scheduler gauges: %w", err)
	}

	counters, err := NewSchedulerCounters(meter)
	if err != nil {
		return nil, fmt.Errorf("register scheduler counters: %w", err)
	}

	batch, err := NewBatchMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("register batch metrics: %w", err)
	}

	var lc net.ListenConfig

	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: mux}

	go func() {
		serveErr := srv.Serve(listener)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Warn("diagnostics server stopped", "error", serveErr)
		}
	}()

	return &DiagnosticsServer{
		server:   srv,
		listener: listener,
		Gauges:   gauges,
		Counters: counters,
		Batch:    batch,
	}, nil
}

// Addr returns the address the server is listening on.
func (d *DiagnosticsServer) Addr() string {
	return d.listener.Addr().String()
}

// Close gracefully shuts down the diagnostics server.
func (d *DiagnosticsServer) Close() error {
	err := d.server.Shutdown(context.Background())
	if err != nil {
		return fmt.Errorf("shutdown diagnostics server: %w", err)
	}

	return nil
}
