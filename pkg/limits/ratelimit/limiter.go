package ratelimit

import (
	"time"
)

// Limiter makes admission decisions for a single identity.
//
// Allow evaluates the strategy at now, updates the limiter's state and
// reports whether the request is admitted. Implementations are NOT safe
// for concurrent use: the registry serializes calls for each identity so
// that every decision is applied as one indivisible step.
type Limiter interface {
	// Allow decides whether a request arriving at now is admitted.
	Allow(now time.Time) bool

	// Kind returns the limiter's strategy.
	Kind() Kind

	// Stats returns a snapshot of the limiter's state.
	Stats() Stats
}

// New creates a limiter with fresh state for cfg. The limiter's clock
// bookkeeping starts at now (the registration time).
//
// Returns a *ConfigError wrapping ErrInvalidConfig if cfg is invalid.
func New(cfg Config, now time.Time) (Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case KindFixedWindow:
		return NewFixedWindow(cfg.Window, cfg.MaxRequests, now), nil
	case KindLeakyBucket:
		return NewLeakyBucket(cfg.Capacity, cfg.LeakRate, now), nil
	default:
		sw := NewSlidingWindowLog(cfg.Window, cfg.MaxRequests)
		sw.dropRejected = cfg.DropRejected
		return sw, nil
	}
}

// compact drops the first n entries of s, reusing its backing array so
// the slice's capacity stays bounded by its peak length.
func compact(s []time.Time, n int) []time.Time {
	if n <= 0 {
		return s
	}
	if n >= len(s) {
		return s[:0]
	}
	return append(s[:0], s[n:]...)
}
