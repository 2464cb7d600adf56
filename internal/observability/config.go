// Package observability wires structured logging, OTel metrics, and HTTP
// health/readiness/Prometheus endpoints for the lintsched orchestrator.
package observability

// defaultServiceName is the OTel resource service name used when Config
// does not override it.
const defaultServiceName = "lintsched"

// Config holds the orchestrator's observability identity. Unlike a
// long-lived server, a scheduler run is a single batch job: there is no
// per-request mode or OTLP exporter config here, only what the
// Prometheus `/metrics` scrape endpoint and structured logs need to
// identify a run.
type Config struct {
	// ServiceName is the OTel resource service name.
	ServiceName string

	// ServiceVersion is the running binary's version (pkg/version.Version).
	ServiceVersion string

	// RunID distinguishes this invocation's metrics/logs from any other,
	// since lintsched is a one-shot batch job rather than a long-lived
	// server with a stable identity across restarts.
	RunID string
}

// DefaultConfig returns a Config with sensible defaults for zero-config
// startup.
func DefaultConfig() Config {
	return Config{ServiceName: defaultServiceName}
}
