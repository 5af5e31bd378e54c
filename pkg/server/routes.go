package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"turnstile-hq/turnstile/pkg/clock"
	"turnstile-hq/turnstile/pkg/limits/ratelimit"
	"turnstile-hq/turnstile/pkg/telemetry/health"
)

// Default route paths.
const (
	DefaultMetricsPath = "/metrics"
	LivenessPath       = "/health/live"
	ReadinessPath      = "/health/ready"
	VersionPath        = "/version"
	IdentitiesPath     = "/identities"
)

// IdentitySource is the read-only view of a limiter the identities
// endpoint needs. *limits.RateLimiter[string] implements it.
type IdentitySource interface {
	Identities() []string
	Stats(id string) (ratelimit.Stats, error)
}

// Deps are the handlers and collaborators the router mounts. Nil members
// leave their routes unregistered.
type Deps struct {
	// Metrics serves the Prometheus exposition format.
	Metrics http.Handler

	// MetricsPath overrides DefaultMetricsPath.
	MetricsPath string

	// Health backs the liveness and readiness checks.
	Health *health.Checker

	// Version is served on VersionPath.
	Version health.VersionInfo

	// Identities backs the identities endpoint.
	Identities IdentitySource

	// HealthRateLimit caps health requests per second. Zero disables it.
	HealthRateLimit int

	// Clock drives the health rate limiter.
	Clock clock.Clock

	Logger *slog.Logger
}

// NewRouter builds the chi router. Every route runs behind the request ID,
// logging, and recovery middleware, outermost first.
func NewRouter(deps Deps) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(RecoveryMiddleware(logger))

	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = DefaultMetricsPath
		}
		r.Method(http.MethodGet, path, deps.Metrics)
	}

	if deps.Health != nil {
		limited := func(h http.Handler) http.Handler {
			return health.RateLimitedHandler(h, deps.HealthRateLimit, deps.Clock)
		}
		live := limited(deps.Health.LivenessHandler())
		ready := limited(deps.Health.ReadinessHandler())

		r.Method(http.MethodGet, LivenessPath, live)
		r.Method(http.MethodHead, LivenessPath, live)
		r.Method(http.MethodGet, ReadinessPath, ready)
		r.Method(http.MethodHead, ReadinessPath, ready)
	}

	r.Get(VersionPath, health.VersionHandler(deps.Version))

	if deps.Identities != nil {
		r.Get(IdentitiesPath, identitiesHandler(deps.Identities))
		r.Get(IdentitiesPath+"/{id}", identityHandler(deps.Identities))
	}

	return r
}

// IdentityStats is the JSON form of one identity's limiter snapshot.
type IdentityStats struct {
	Identity string `json:"identity"`
	Kind     string `json:"kind"`
	Used     int    `json:"used"`
	Limit    int    `json:"limit"`
}

func newIdentityStats(id string, s ratelimit.Stats) IdentityStats {
	return IdentityStats{Identity: id, Kind: string(s.Kind), Used: s.Used, Limit: s.Limit}
}

func identitiesHandler(src IdentitySource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := src.Identities()
		sort.Strings(ids)

		out := make([]IdentityStats, 0, len(ids))
		for _, id := range ids {
			s, err := src.Stats(id)
			if err != nil {
				// Removed between listing and snapshot.
				continue
			}
			out = append(out, newIdentityStats(id, s))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func identityHandler(src IdentitySource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		s, err := src.Stats(id)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, newIdentityStats(id, s))
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
