package ratelimit

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Kind names one of the admission strategies.
type Kind string

const (
	// KindFixedWindow counts requests in consecutive, non-overlapping windows.
	KindFixedWindow Kind = "fixed_window"

	// KindLeakyBucket queues admitted requests and drains them at a fixed rate.
	KindLeakyBucket Kind = "leaky_bucket"

	// KindSlidingWindowLog keeps a timestamp per request over a rolling window.
	KindSlidingWindowLog Kind = "sliding_window_log"
)

// Kinds lists every supported strategy.
var Kinds = []Kind{KindFixedWindow, KindLeakyBucket, KindSlidingWindowLog}

// Valid reports whether k names a supported strategy.
func (k Kind) Valid() bool {
	switch k {
	case KindFixedWindow, KindLeakyBucket, KindSlidingWindowLog:
		return true
	}
	return false
}

// ErrInvalidConfig is returned when a limiter configuration has a missing
// or non-positive parameter.
var ErrInvalidConfig = errors.New("invalid limiter configuration")

// ConfigError describes which configuration field was rejected.
// It unwraps to ErrInvalidConfig.
type ConfigError struct {
	// Kind is the strategy the configuration was validated for.
	Kind Kind

	// Field is the YAML name of the offending field.
	Field string

	// Reason explains why the value was rejected.
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("%s: %s: %s", ErrInvalidConfig, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s.%s: %s", ErrInvalidConfig, e.Kind, e.Field, e.Reason)
}

// Unwrap returns ErrInvalidConfig.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// Config holds the parameters of one identity's limiter. Which fields are
// read depends on Kind:
//
//   - fixed_window: Window, MaxRequests
//   - leaky_bucket: Capacity, LeakRate
//   - sliding_window_log: Window, MaxRequests, DropRejected
//
// A Config is copied into the limiter at registration and never changes
// afterwards.
type Config struct {
	// Kind selects the strategy.
	Kind Kind `yaml:"kind" json:"kind"`

	// Window is the window length for fixed_window and sliding_window_log.
	Window time.Duration `yaml:"window" json:"window,omitempty"`

	// MaxRequests is the number of requests admitted per window.
	MaxRequests int `yaml:"max_requests" json:"max_requests,omitempty"`

	// Capacity is the maximum number of queued requests in a leaky bucket.
	Capacity int `yaml:"capacity" json:"capacity,omitempty"`

	// LeakRate is the number of queued requests drained per second.
	LeakRate float64 `yaml:"leak_rate" json:"leak_rate,omitempty"`

	// DropRejected removes a rejected request's timestamp from a sliding
	// window log instead of keeping it until it ages out.
	DropRejected bool `yaml:"drop_rejected" json:"drop_rejected,omitempty"`
}

// FixedWindowConfig returns a fixed window configuration.
func FixedWindowConfig(window time.Duration, maxRequests int) Config {
	return Config{Kind: KindFixedWindow, Window: window, MaxRequests: maxRequests}
}

// LeakyBucketConfig returns a leaky bucket configuration.
func LeakyBucketConfig(capacity int, leakRate float64) Config {
	return Config{Kind: KindLeakyBucket, Capacity: capacity, LeakRate: leakRate}
}

// SlidingWindowLogConfig returns a sliding window log configuration.
func SlidingWindowLogConfig(window time.Duration, maxRequests int) Config {
	return Config{Kind: KindSlidingWindowLog, Window: window, MaxRequests: maxRequests}
}

// Sliding window log defaults used when an identity is registered without limits.
const (
	DefaultSlidingWindowLogMaxRequests = 100
	DefaultSlidingWindowLogWindow      = time.Minute
)

// DefaultSlidingWindowLogConfig returns 100 requests per minute.
func DefaultSlidingWindowLogConfig() Config {
	return SlidingWindowLogConfig(DefaultSlidingWindowLogWindow, DefaultSlidingWindowLogMaxRequests)
}

// Validate checks the fields used by c.Kind. It returns a *ConfigError,
// which wraps ErrInvalidConfig, for the first invalid field.
func (c Config) Validate() error {
	switch c.Kind {
	case KindFixedWindow, KindSlidingWindowLog:
		if c.Window <= 0 {
			return &ConfigError{Kind: c.Kind, Field: "window", Reason: fmt.Sprintf("must be positive, got %v", c.Window)}
		}
		if c.MaxRequests <= 0 {
			return &ConfigError{Kind: c.Kind, Field: "max_requests", Reason: fmt.Sprintf("must be positive, got %d", c.MaxRequests)}
		}
	case KindLeakyBucket:
		if c.Capacity <= 0 {
			return &ConfigError{Kind: c.Kind, Field: "capacity", Reason: fmt.Sprintf("must be positive, got %d", c.Capacity)}
		}
		if math.IsNaN(c.LeakRate) || math.IsInf(c.LeakRate, 0) || c.LeakRate <= 0 {
			return &ConfigError{Kind: c.Kind, Field: "leak_rate", Reason: fmt.Sprintf("must be a positive finite number, got %v", c.LeakRate)}
		}
	case "":
		return &ConfigError{Field: "kind", Reason: "is required"}
	default:
		return &ConfigError{Field: "kind", Reason: fmt.Sprintf("unknown strategy %q", c.Kind)}
	}
	return nil
}

// Limit returns the admission bound of the configuration: MaxRequests for
// window strategies, Capacity for the leaky bucket.
func (c Config) Limit() int {
	if c.Kind == KindLeakyBucket {
		return c.Capacity
	}
	return c.MaxRequests
}

// Stats is a point-in-time view of a limiter's state.
type Stats struct {
	// Kind is the limiter's strategy.
	Kind Kind

	// Used is the request count of the current fixed window, the leaky
	// bucket's queue length, or the sliding log's length. A sliding log
	// may report more than Limit while rejected entries age out.
	Used int

	// Limit is the configured bound (MaxRequests or Capacity).
	Limit int
}
