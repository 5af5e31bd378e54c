// Package server provides Turnstile's operations HTTP server.
//
// The server answers operators and scrapers, never admission questions:
//
//	GET  /metrics            Prometheus exposition
//	GET  /health/live        liveness check (also HEAD)
//	GET  /health/ready       readiness check (also HEAD)
//	GET  /version            build information
//	GET  /identities         every identity with its limiter snapshot
//	GET  /identities/{id}    one identity's snapshot
//
// Routing uses chi. Every request passes through recovery, request ID, and
// logging middleware; health routes are optionally rate limited.
//
//	srv := server.New(cfg.Server, server.Deps{
//	    Metrics:    collector.Handler(),
//	    Health:     checker,
//	    Version:    health.NewVersionInfo(version, commit, buildTime),
//	    Identities: limiter,
//	    Logger:     logger,
//	})
//	err := srv.Start(ctx) // blocks until ctx is cancelled
package server
