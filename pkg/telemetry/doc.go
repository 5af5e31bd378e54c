// Package telemetry groups Turnstile's observability packages.
//
//   - logging: slog construction, identity masking, context enrichment
//   - metrics: Prometheus registry and the /metrics handler
//   - tracing: OpenTelemetry tracer provider with an OTLP exporter
//   - health: liveness, readiness, and version endpoints
//
// Each subpackage is configured from the matching section of
// config.TelemetryConfig.
package telemetry
