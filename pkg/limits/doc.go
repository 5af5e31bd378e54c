// Package limits provides per-identity rate limiting.
//
// # Overview
//
// RateLimiter decides, for a stream of requests tagged with a caller
// identity, whether each request is admitted. Every identity is registered
// with its own strategy and limits:
//
//   - Fixed Window: N requests per fixed window
//   - Leaky Bucket: a bounded queue drained at a constant rate
//   - Sliding Window Log: N requests in any rolling window
//
// # Architecture
//
// The package is organized into sub-packages:
//
//   - ratelimit: the three strategies behind one Limiter interface
//   - registry: the identity map with per-identity locking
//   - audit: decision trail with memory and SQLite storage and retention
//
// # Usage
//
//	rl := limits.New[string](
//	    limits.WithMetrics(limits.NewMetrics(prometheus.DefaultRegisterer)),
//	    limits.WithRecorder(recorder),
//	)
//	defer rl.Close()
//
//	if err := rl.AddIdentity("api-key-123", ratelimit.LeakyBucketConfig(10, 2)); err != nil {
//	    return err
//	}
//
//	allowed, err := rl.Allow(ctx, "api-key-123")
//
// # Thread Safety
//
// All RateLimiter methods are safe for concurrent use. Calls for the same
// identity are serialized; calls for different identities proceed in
// parallel.
package limits
