// Package tracing sets up OpenTelemetry tracing for the service.
//
// New installs a global tracer provider that batches spans to an OTLP gRPC
// collector. When tracing is disabled it returns a noop tracer, so callers
// can pass Tracer() to limits.WithTracer unconditionally:
//
//	t, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer t.Shutdown(context.Background())
//
//	rl := limits.New[string](limits.WithTracer(t.Tracer()))
//
// The limiter emits limits.Allow, limits.AddIdentity, and
// limits.RemoveIdentity spans carrying the identity's strategy and the
// decision.
//
// # Sampling
//
// Three samplers are supported, each wrapped in ParentBased:
//   - always: every trace
//   - never: no trace
//   - ratio: a fraction of traces, decided by trace ID
package tracing
