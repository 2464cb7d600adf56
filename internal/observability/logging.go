package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	attrTraceID = "trace_id"
	attrSpanID  = "span_id"
	attrService = "service"
	attrRunID   = "run_id"
)

// TracingHandler is an [slog.Handler] that injects OpenTelemetry trace
// context (trace_id, span_id) into every log record and pre-attaches
// service/run identity so every line from one invocation carries it,
// even across goroutines that never touch Config directly.
type TracingHandler struct {
	inner slog.Handler
}

// NewTracingHandler wraps inner, pre-attaching service and run_id
// (Config.ServiceName / Config.RunID) to the inner handler so they
// remain at the top level regardless of subsequent WithGroup calls.
func NewTracingHandler(inner slog.Handler, cfg Config) *TracingHandler {
	attrs := []slog.Attr{slog.String(attrService, cfg.ServiceName)}
	if cfg.RunID != "" {
		attrs = append(attrs, slog.String(attrRunID, cfg.RunID))
	}

	return &TracingHandler{inner: inner.WithAttrs(attrs)}
}

// Enabled delegates to the inner handler.
func (th *TracingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return th.inner.Enabled(ctx, level)
}

// Handle adds trace context attributes from the span context, then delegates.
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		record.AddAttrs(
			slog.String(attrTraceID, sc.TraceID().String()),
			slog.String(attrSpanID, sc.SpanID().String()),
		)
	}

	err := th.inner.Handle(ctx, record)
	if err != nil {
		return fmt.Errorf("tracing handler: %w", err)
	}

	return nil
}

// WithAttrs returns a new TracingHandler with additional attributes on the inner handler.
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{inner: th.inner.WithAttrs(attrs)}
}

// WithGroup returns a new TracingHandler with a group prefix on the inner handler.
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{inner: th.inner.WithGroup(name)}
}

// NewLogger builds the slog.Logger every lintsched entry point uses:
// the given handler, wrapped by TracingHandler for trace/run
// correlation.
func NewLogger(handler slog.Handler, cfg Config) *slog.Logger {
	return slog.New(NewTracingHandler(handler, cfg))
}
