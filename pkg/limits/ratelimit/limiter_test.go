package ratelimit

import (
	"errors"
	"math"
	"testing"
	"time"
)

// at returns the time s seconds after the Unix epoch.
func at(s float64) time.Time {
	return time.Unix(0, int64(s*float64(time.Second))).UTC()
}

// ============================================================================
// Fixed Window Tests
// ============================================================================

func TestFixedWindow_Basic(t *testing.T) {
	fw := NewFixedWindow(60*time.Second, 5, at(0))

	for i := 0; i < 5; i++ {
		if !fw.Allow(at(0)) {
			t.Fatalf("Request %d was unexpectedly denied", i+1)
		}
	}

	if fw.Allow(at(0)) {
		t.Error("Expected 6th request in the same window to be denied")
	}

	if !fw.Allow(at(61)) {
		t.Error("Expected request in the next window to be allowed")
	}

	if got := fw.Stats().Used; got != 1 {
		t.Errorf("Expected count 1 after window reset, got %d", got)
	}
}

func TestFixedWindow_CountNeverExceedsMax(t *testing.T) {
	fw := NewFixedWindow(10*time.Second, 3, at(0))

	for i := 0; i < 20; i++ {
		fw.Allow(at(float64(i) * 0.1))
		if used := fw.Stats().Used; used > 3 {
			t.Fatalf("Count %d exceeds max 3", used)
		}
	}
}

func TestFixedWindow_BoundaryBurst(t *testing.T) {
	fw := NewFixedWindow(60*time.Second, 5, at(0))

	allowed := 0
	for i := 0; i < 5; i++ {
		if fw.Allow(at(59.9)) {
			allowed++
		}
	}
	for i := 0; i < 5; i++ {
		if fw.Allow(at(60)) {
			allowed++
		}
	}

	// Both sides of the boundary are full windows.
	if allowed != 10 {
		t.Errorf("Expected 10 admitted across the boundary, got %d", allowed)
	}
}

func TestFixedWindow_WindowIndex(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want int64
	}{
		{"epoch", at(0), 0},
		{"inside first window", at(59.999), 0},
		{"second window", at(60), 1},
		{"before epoch", at(-1), -1},
		{"exact negative boundary", at(-60), -1},
		{"just before negative boundary", at(-60.5), -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fw := NewFixedWindow(60*time.Second, 1, tt.now)
			if got := fw.WindowIndex(); got != tt.want {
				t.Errorf("WindowIndex() = %d, want %d", got, tt.want)
			}
		})
	}
}

// ============================================================================
// Leaky Bucket Tests
// ============================================================================

func TestLeakyBucket_Basic(t *testing.T) {
	lb := NewLeakyBucket(5, 1, at(0))

	for i := 0; i < 5; i++ {
		if !lb.Allow(at(0)) {
			t.Fatalf("Request %d was unexpectedly denied", i+1)
		}
	}

	if lb.Allow(at(0)) {
		t.Error("Expected 6th request to be denied with a full bucket")
	}

	// Two units leak by t=2, freeing room for the retry.
	if !lb.Allow(at(2)) {
		t.Error("Expected request to be allowed after leaking")
	}
	if got := lb.Stats().Used; got != 4 {
		t.Errorf("Expected queue length 4 (5 - 2 leaked + 1), got %d", got)
	}
}

func TestLeakyBucket_NeverExceedsCapacity(t *testing.T) {
	lb := NewLeakyBucket(3, 0.5, at(0))

	for i := 0; i < 100; i++ {
		lb.Allow(at(float64(i) * 0.3))
		if used := lb.Stats().Used; used > 3 {
			t.Fatalf("Queue length %d exceeds capacity 3", used)
		}
	}
}

func TestLeakyBucket_FractionalLeakCarries(t *testing.T) {
	lb := NewLeakyBucket(2, 1, at(0))
	lb.Allow(at(0))
	lb.Allow(at(0))

	// 0.6s elapsed: no whole unit, lastLeak must not move.
	if lb.Allow(at(0.6)) {
		t.Fatal("Expected denial before a whole unit leaked")
	}
	if !lb.LastLeak().Equal(at(0)) {
		t.Fatalf("lastLeak advanced without a leak: %v", lb.LastLeak())
	}

	// 1.2s since the last leak: one unit, even though each gap was < 1s.
	if !lb.Allow(at(1.2)) {
		t.Fatal("Expected accumulated fractional progress to leak one unit")
	}
	if !lb.LastLeak().Equal(at(1.2)) {
		t.Errorf("Expected lastLeak 1.2s, got %v", lb.LastLeak())
	}
}

func TestLeakyBucket_LowRateSteadyTraffic(t *testing.T) {
	// 1 unit every 10s, polled every second.
	lb := NewLeakyBucket(1, 0.1, at(0))
	if !lb.Allow(at(0)) {
		t.Fatal("Expected first request to be allowed")
	}

	allowed := 0
	for s := 1; s <= 30; s++ {
		if lb.Allow(at(float64(s))) {
			allowed++
		}
	}

	// One unit leaks at t=10, 20 and 30.
	if allowed != 3 {
		t.Errorf("Expected 3 admissions over 30s at 0.1/s, got %d", allowed)
	}
}

func TestLeakyBucket_LeakCappedAtQueueLength(t *testing.T) {
	lb := NewLeakyBucket(3, 100, at(0))
	lb.Allow(at(0))

	// Idle for a very long time: leaking more units than queued must not panic.
	if !lb.Allow(at(1e9)) {
		t.Fatal("Expected request after long idle period to be allowed")
	}
	if got := lb.Stats().Used; got != 1 {
		t.Errorf("Expected queue length 1, got %d", got)
	}
}

func TestLeakyBucket_ClockGoingBackwards(t *testing.T) {
	lb := NewLeakyBucket(1, 1, at(10))
	lb.Allow(at(10))

	if lb.Allow(at(5)) {
		t.Error("Expected no leak when time moves backwards")
	}
	if !lb.LastLeak().Equal(at(10)) {
		t.Errorf("lastLeak should be unchanged, got %v", lb.LastLeak())
	}
}

// ============================================================================
// Sliding Window Log Tests
// ============================================================================

func TestSlidingWindowLog_Basic(t *testing.T) {
	sw := NewSlidingWindowLog(60*time.Second, 3)

	for _, s := range []float64{0, 10, 20} {
		if !sw.Allow(at(s)) {
			t.Fatalf("Request at t=%v was unexpectedly denied", s)
		}
	}

	if sw.Allow(at(30)) {
		t.Error("Expected request at t=30 to be denied (4 in log)")
	}
	if sw.Len() != 4 {
		t.Errorf("Expected rejected request to stay in the log, len=%d", sw.Len())
	}

	// t=0 is evicted but the rejected t=30 entry still counts: [10 20 30 61].
	if sw.Allow(at(61)) {
		t.Error("Expected request at t=61 to be denied while t=30 is retained")
	}
	if sw.Len() != 4 {
		t.Errorf("Expected log [10 20 30 61], len=%d", sw.Len())
	}
}

func TestSlidingWindowLog_RejectedEntryAgesOut(t *testing.T) {
	sw := NewSlidingWindowLog(60*time.Second, 3)

	for _, s := range []float64{0, 10, 20, 30} {
		sw.Allow(at(s))
	}

	// At t=71: 0 and 10 evicted, log is [20 30 71] -> allowed.
	if !sw.Allow(at(71)) {
		t.Error("Expected allowed at t=71")
	}
	// At t=72: log [20 30 71 72] -> denied, the t=30 rejection still counts.
	if sw.Allow(at(72)) {
		t.Error("Expected denied at t=72 while the rejected t=30 entry is in window")
	}
	// At t=91: 20 and 30 evicted (> 60s), [71 72 91] -> allowed.
	if !sw.Allow(at(91)) {
		t.Error("Expected allowed at t=91 after the rejected entry aged out")
	}
}

func TestSlidingWindowLog_EvictionBoundary(t *testing.T) {
	sw := NewSlidingWindowLog(60*time.Second, 1)
	sw.Allow(at(0))

	// Exactly window old is still inside (now - ts > window evicts).
	if sw.Allow(at(60)) {
		t.Error("Expected entry exactly one window old to be retained")
	}
	if !sw.Allow(at(120.5)) {
		t.Error("Expected old entries to be evicted")
	}
}

func TestSlidingWindowLog_DropRejected(t *testing.T) {
	limiter, err := New(Config{
		Kind:         KindSlidingWindowLog,
		Window:       60 * time.Second,
		MaxRequests:  3,
		DropRejected: true,
	}, at(0))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for _, s := range []float64{0, 10, 20} {
		limiter.Allow(at(s))
	}

	for i := 0; i < 10; i++ {
		if limiter.Allow(at(30)) {
			t.Fatal("Expected denial while the window is full")
		}
	}
	if used := limiter.Stats().Used; used != 3 {
		t.Errorf("Expected log bounded at 3, got %d", used)
	}

	// t=0 evicted at 61 and no rejected entry lingers: [10 20 61].
	if !limiter.Allow(at(61)) {
		t.Error("Expected allowed at t=61")
	}
	// t=10 evicted at 71: [20 61 71].
	if !limiter.Allow(at(71)) {
		t.Error("Expected allowed at t=71 since rejected requests were not logged")
	}
}

func TestSlidingWindowLog_RetainedEntriesWithinWindow(t *testing.T) {
	sw := NewSlidingWindowLog(5*time.Second, 2)

	for i := 0; i < 200; i++ {
		now := at(float64(i) * 0.37)
		sw.Allow(now)
		for _, ts := range sw.log {
			if now.Sub(ts) > 5*time.Second {
				t.Fatalf("Entry %v retained beyond the window at %v", ts, now)
			}
		}
	}
}

// ============================================================================
// Config Tests
// ============================================================================

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantField string
	}{
		{"valid fixed window", FixedWindowConfig(time.Minute, 5), ""},
		{"valid leaky bucket", LeakyBucketConfig(5, 0.5), ""},
		{"valid sliding log", SlidingWindowLogConfig(time.Minute, 3), ""},
		{"default sliding log", DefaultSlidingWindowLogConfig(), ""},
		{"missing kind", Config{Window: time.Minute, MaxRequests: 1}, "kind"},
		{"unknown kind", Config{Kind: "token_bucket"}, "kind"},
		{"zero window", FixedWindowConfig(0, 5), "window"},
		{"negative window", SlidingWindowLogConfig(-time.Second, 5), "window"},
		{"zero max requests", FixedWindowConfig(time.Minute, 0), "max_requests"},
		{"negative max requests", SlidingWindowLogConfig(time.Minute, -1), "max_requests"},
		{"zero capacity", LeakyBucketConfig(0, 1), "capacity"},
		{"zero leak rate", LeakyBucketConfig(5, 0), "leak_rate"},
		{"negative leak rate", LeakyBucketConfig(5, -1), "leak_rate"},
		{"NaN leak rate", LeakyBucketConfig(5, math.NaN()), "leak_rate"},
		{"infinite leak rate", LeakyBucketConfig(5, math.Inf(1)), "leak_rate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()

			if tt.wantField == "" {
				if err != nil {
					t.Errorf("Expected valid config, got %v", err)
				}
				return
			}

			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Expected ErrInvalidConfig, got %v", err)
			}

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected *ConfigError, got %T", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("Expected field %q, got %q", tt.wantField, cfgErr.Field)
			}
		})
	}
}

func TestNew_SelectsStrategy(t *testing.T) {
	for _, kind := range Kinds {
		cfg := Config{Kind: kind, Window: time.Second, MaxRequests: 1, Capacity: 1, LeakRate: 1}

		limiter, err := New(cfg, at(0))
		if err != nil {
			t.Fatalf("New(%s) failed: %v", kind, err)
		}
		if limiter.Kind() != kind {
			t.Errorf("Expected kind %s, got %s", kind, limiter.Kind())
		}
		if limiter.Stats().Limit != 1 {
			t.Errorf("Expected limit 1 for %s, got %d", kind, limiter.Stats().Limit)
		}
	}

	if _, err := New(LeakyBucketConfig(-1, 1), at(0)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig from New, got %v", err)
	}
}

// ============================================================================
// Determinism
// ============================================================================

func TestStrategies_DeterministicReplay(t *testing.T) {
	times := []float64{0, 0.1, 0.2, 0.9, 1.0, 1.5, 3.2, 3.3, 59.9, 60.0, 60.1, 61, 90, 121}

	run := func(kind Kind) []bool {
		cfg := Config{Kind: kind, Window: 60 * time.Second, MaxRequests: 3, Capacity: 3, LeakRate: 0.7}
		limiter, err := New(cfg, at(0))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		out := make([]bool, 0, len(times))
		for _, s := range times {
			out = append(out, limiter.Allow(at(s)))
		}
		return out
	}

	for _, kind := range Kinds {
		first := run(kind)
		for i := 0; i < 5; i++ {
			again := run(kind)
			for j := range first {
				if first[j] != again[j] {
					t.Fatalf("%s: run %d diverged at step %d", kind, i, j)
				}
			}
		}
	}
}

// ============================================================================
// Benchmarks
// ============================================================================

func BenchmarkFixedWindow_Allow(b *testing.B) {
	fw := NewFixedWindow(time.Second, 1000, at(0))
	now := at(0)
	for b.Loop() {
		now = now.Add(time.Microsecond)
		fw.Allow(now)
	}
}

func BenchmarkLeakyBucket_Allow(b *testing.B) {
	lb := NewLeakyBucket(1000, 1000, at(0))
	now := at(0)
	for b.Loop() {
		now = now.Add(time.Microsecond)
		lb.Allow(now)
	}
}

func BenchmarkSlidingWindowLog_Allow(b *testing.B) {
	sw := NewSlidingWindowLog(time.Second, 1000)
	now := at(0)
	for b.Loop() {
		now = now.Add(time.Microsecond)
		sw.Allow(now)
	}
}
