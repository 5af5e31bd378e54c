package health

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync"

	"turnstile-hq/turnstile/pkg/clock"
	"turnstile-hq/turnstile/pkg/limits/ratelimit"
)

// VersionInfo contains build and version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// NewVersionInfo fills in the Go version.
func NewVersionInfo(version, commit, buildTime string) VersionInfo {
	return VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
}

// LivenessHandler serves the liveness check. It always answers 200.
//
//	{"status": "ok", "timestamp": "2026-01-02T10:30:00Z"}
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler serves the readiness check: 200 when every check
// passes, 503 otherwise.
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "audit_storage": {"status": "unhealthy", "message": "audit storage: database is locked"}
//	    },
//	    "timestamp": "2026-01-02T10:30:00Z"
//	}
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.CheckReadiness(r.Context())

		code := http.StatusOK
		if !status.Ready() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, r, code, status)
	}
}

// VersionHandler serves build information.
func VersionHandler(info VersionInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusOK, info)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// RateLimitedHandler guards handler with a leaky bucket of capacity
// requestsPerSecond draining at the same rate, so bursts of up to one
// second's worth are served. Rejected requests get 429 with Retry-After.
// A non-positive rate disables limiting.
func RateLimitedHandler(handler http.Handler, requestsPerSecond int, clk clock.Clock) http.Handler {
	if requestsPerSecond <= 0 {
		return handler
	}
	if clk == nil {
		clk = clock.System{}
	}

	var mu sync.Mutex
	bucket := ratelimit.NewLeakyBucket(requestsPerSecond, float64(requestsPerSecond), clk.Now())

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		allowed := bucket.Allow(clk.Now())
		mu.Unlock()

		if !allowed {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
