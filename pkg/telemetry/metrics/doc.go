// Package metrics exposes the service's Prometheus metrics.
//
// Collector owns a dedicated registry holding:
//
//   - Go runtime and process metrics
//   - turnstile_build_info{version,go_version}
//   - the limiter metrics from limits.NewMetrics:
//     turnstile_decisions_total{kind,result},
//     turnstile_decision_duration_seconds{kind},
//     turnstile_identities{kind},
//     turnstile_registry_operations_total{operation,result},
//     and turnstile_audit_dropped_total once an audit recorder is attached
//
// Handler serves the registry; the ops server mounts it at
// telemetry.metrics.path.
package metrics
