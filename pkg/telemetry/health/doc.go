// Package health provides liveness, readiness, and version endpoints.
//
// # Endpoints
//
//   - /health/live: the process is serving; never runs checks
//   - /health/ready: every registered check passed (200) or not (503)
//   - /version: build information
//
// # Usage
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("audit_storage", health.StorageCheck(store))
//	checker.RegisterCheck("audit_recorder", health.RecorderCheck(recorder, 0))
//
//	r.Get("/health/live", checker.LivenessHandler())
//	r.Get("/health/ready", checker.ReadinessHandler())
//
// Checks run concurrently, each bounded by the checker's timeout. A check
// that times out is reported unhealthy.
//
// RateLimitedHandler protects health endpoints from scrape storms with the
// same leaky bucket the limiter uses for identities.
package health
