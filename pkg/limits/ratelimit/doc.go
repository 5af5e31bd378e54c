// Package ratelimit provides the admission strategies used for per-identity
// rate limiting.
//
// # Overview
//
// The ratelimit package implements three interchangeable strategies behind
// the Limiter interface:
//
//   - Fixed Window: a counter per fixed-length window, reset at each boundary
//   - Leaky Bucket: a bounded queue drained at a constant rate
//   - Sliding Window Log: one timestamp per request over a rolling window
//
// # Fixed Window
//
// Cheapest in memory (two integers). Admits bursts of up to twice the limit
// around a window boundary:
//
//	fw := ratelimit.NewFixedWindow(time.Minute, 5, now)
//	if fw.Allow(now) {
//	    // Request allowed
//	}
//
// # Leaky Bucket
//
// Smooths traffic to the leak rate while absorbing bursts up to capacity.
// Leaks happen in whole units; fractional progress carries over:
//
//	lb := ratelimit.NewLeakyBucket(5, 1.0, now) // 5 queued, 1 leaked/sec
//	lb.Allow(now)
//
// # Sliding Window Log
//
// Exact over any rolling window at the cost of one timestamp per request:
//
//	sw := ratelimit.NewSlidingWindowLog(time.Minute, 100)
//	sw.Allow(now)
//
// # Configuration
//
// Config describes any of the three strategies and New builds the matching
// Limiter:
//
//	limiter, err := ratelimit.New(ratelimit.LeakyBucketConfig(5, 1), now)
//	if errors.Is(err, ratelimit.ErrInvalidConfig) {
//	    // Non-positive capacity or leak rate
//	}
//
// # Thread Safety
//
// Limiters hold no locks. Every Allow call reads and writes the limiter's
// state, so callers must serialize access per limiter; the registry package
// does this with one mutex per identity.
package ratelimit
