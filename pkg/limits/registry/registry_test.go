package registry_test

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turnstile-hq/turnstile/pkg/limits/ratelimit"
	"turnstile-hq/turnstile/pkg/limits/registry"
)

var t0 = time.Unix(0, 0).UTC()

func sec(s float64) time.Time {
	return t0.Add(time.Duration(s * float64(time.Second)))
}

func TestRegistry_AddRemove(t *testing.T) {
	t.Run("add then allow", func(t *testing.T) {
		r := registry.New[string]()
		require.NoError(t, r.Add("alice", ratelimit.FixedWindowConfig(time.Minute, 1), t0))

		allowed, err := r.Allow("alice", t0)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = r.Allow("alice", t0)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("duplicate add fails and keeps state", func(t *testing.T) {
		r := registry.New[string]()
		require.NoError(t, r.Add("alice", ratelimit.FixedWindowConfig(time.Minute, 1), t0))

		_, err := r.Allow("alice", t0)
		require.NoError(t, err)

		err = r.Add("alice", ratelimit.FixedWindowConfig(time.Minute, 100), t0)
		require.ErrorIs(t, err, registry.ErrAlreadyExists)

		// The original limiter, already exhausted, is still in place.
		allowed, err := r.Allow("alice", t0)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	t.Run("invalid config is rejected", func(t *testing.T) {
		r := registry.New[string]()
		err := r.Add("alice", ratelimit.LeakyBucketConfig(0, 1), t0)

		require.ErrorIs(t, err, ratelimit.ErrInvalidConfig)
		_, err = r.Config("alice")
		assert.ErrorIs(t, err, registry.ErrNotFound)
		assert.Equal(t, 0, r.Len())
	})

	t.Run("remove unknown identity", func(t *testing.T) {
		r := registry.New[string]()
		err := r.Remove("nobody")

		require.ErrorIs(t, err, registry.ErrNotFound)
	})

	t.Run("allow unknown identity", func(t *testing.T) {
		r := registry.New[string]()
		allowed, err := r.Allow("nobody", t0)

		require.ErrorIs(t, err, registry.ErrNotFound)
		assert.False(t, allowed)
	})

	t.Run("re-adding after remove starts fresh", func(t *testing.T) {
		r := registry.New[string]()
		cfg := ratelimit.FixedWindowConfig(time.Minute, 1)
		require.NoError(t, r.Add("alice", cfg, t0))

		allowed, _ := r.Allow("alice", t0)
		require.True(t, allowed)

		require.NoError(t, r.Remove("alice"))
		_, err := r.Allow("alice", t0)
		require.ErrorIs(t, err, registry.ErrNotFound)

		require.NoError(t, r.Add("alice", cfg, t0))
		allowed, err = r.Allow("alice", t0)
		require.NoError(t, err)
		assert.True(t, allowed, "fresh limiter should not inherit the removed state")
	})
}

func TestRegistry_IdentityError(t *testing.T) {
	r := registry.New[int]()
	err := r.Remove(42)

	var idErr *registry.IdentityError
	require.True(t, errors.As(err, &idErr))
	assert.Equal(t, "remove", idErr.Op)
	assert.Equal(t, 42, idErr.Identity)
	assert.Equal(t, "remove 42: identity not found", err.Error())
}

func TestRegistry_IndependentIdentities(t *testing.T) {
	r := registry.New[string]()
	require.NoError(t, r.Add("a", ratelimit.SlidingWindowLogConfig(time.Minute, 2), t0))
	require.NoError(t, r.Add("b", ratelimit.SlidingWindowLogConfig(time.Minute, 2), t0))

	for range 2 {
		allowed, err := r.Allow("a", t0)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, _ := r.Allow("a", t0)
	assert.False(t, allowed, "a should be limited")

	allowed, err := r.Allow("b", t0)
	require.NoError(t, err)
	assert.True(t, allowed, "b should be unaffected by a")
}

func TestRegistry_Introspection(t *testing.T) {
	r := registry.New[string]()
	require.NoError(t, r.Add("fw", ratelimit.FixedWindowConfig(time.Minute, 5), t0))
	require.NoError(t, r.Add("lb", ratelimit.LeakyBucketConfig(3, 1), t0))
	require.NoError(t, r.Add("sw", ratelimit.DefaultSlidingWindowLogConfig(), t0))

	assert.Equal(t, 3, r.Len())
	assert.ElementsMatch(t, []string{"fw", "lb", "sw"}, r.Keys())

	cfg, err := r.Config("lb")
	require.NoError(t, err)
	assert.Equal(t, ratelimit.LeakyBucketConfig(3, 1), cfg)

	_, _ = r.Allow("lb", t0)
	stats, err := r.Stats("lb")
	require.NoError(t, err)
	assert.Equal(t, ratelimit.Stats{Kind: ratelimit.KindLeakyBucket, Used: 1, Limit: 3}, stats)

	_, err = r.Stats("missing")
	require.ErrorIs(t, err, registry.ErrNotFound)
	_, err = r.Config("missing")
	require.ErrorIs(t, err, registry.ErrNotFound)

	assert.Equal(t, map[ratelimit.Kind]int{
		ratelimit.KindFixedWindow:      1,
		ratelimit.KindLeakyBucket:      1,
		ratelimit.KindSlidingWindowLog: 1,
	}, r.CountByKind())
}

func TestRegistry_RangeAllowsReentry(t *testing.T) {
	r := registry.New[string]()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Add(id, ratelimit.FixedWindowConfig(time.Minute, 1), t0))
	}

	// Removing from inside the callback must not deadlock.
	visited := 0
	r.Range(func(id string, _ ratelimit.Config) bool {
		visited++
		require.NoError(t, r.Remove(id))
		return true
	})

	assert.Equal(t, 3, visited)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ConcurrentSameIdentity(t *testing.T) {
	const (
		maxRequests = 50
		goroutines  = 200
	)

	tests := []struct {
		name string
		cfg  ratelimit.Config
	}{
		{"fixed window", ratelimit.FixedWindowConfig(time.Minute, maxRequests)},
		{"leaky bucket", ratelimit.LeakyBucketConfig(maxRequests, 0.001)},
		{"sliding window log", ratelimit.SlidingWindowLogConfig(time.Minute, maxRequests)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := registry.New[string]()
			require.NoError(t, r.Add("shared", tt.cfg, t0))

			var (
				wg      sync.WaitGroup
				allowed atomic.Int64
			)
			for range goroutines {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := r.Allow("shared", sec(1))
					if err == nil && ok {
						allowed.Add(1)
					}
				}()
			}
			wg.Wait()

			assert.Equal(t, int64(maxRequests), allowed.Load())
		})
	}
}

func TestRegistry_ConcurrentManyIdentities(t *testing.T) {
	const identities = 32

	r := registry.New[string]()
	for i := range identities {
		require.NoError(t, r.Add(fmt.Sprintf("user-%d", i), ratelimit.FixedWindowConfig(time.Minute, 10), t0))
	}

	var (
		wg     sync.WaitGroup
		counts [identities]atomic.Int64
	)
	for i := range identities {
		for range 25 {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := r.Allow(fmt.Sprintf("user-%d", i), t0)
				if err == nil && ok {
					counts[i].Add(1)
				}
			}(i)
		}
	}
	wg.Wait()

	for i := range identities {
		assert.Equal(t, int64(10), counts[i].Load(), "user-%d", i)
	}
}

func TestRegistry_ConcurrentAddRemoveAllow(t *testing.T) {
	r := registry.New[int]()
	cfg := ratelimit.LeakyBucketConfig(5, 10)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(3)
		go func() {
			defer wg.Done()
			_ = r.Add(i%10, cfg, t0)
		}()
		go func() {
			defer wg.Done()
			_ = r.Remove(i % 10)
		}()
		go func() {
			defer wg.Done()
			_, err := r.Allow(i%10, sec(float64(i)))
			if err != nil {
				assert.ErrorIs(t, err, registry.ErrNotFound)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, r.Len(), 10)
}

func TestRegistry_DecideReadsClockUnderLock(t *testing.T) {
	r := registry.New[string]()
	require.NoError(t, r.Add("alice", ratelimit.SlidingWindowLogConfig(time.Second, 1000), t0))

	var (
		mu   sync.Mutex
		tick int64
		wg   sync.WaitGroup
	)
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return t0.Add(time.Duration(tick) * time.Millisecond)
	}

	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Decide("alice", now)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stats, err := r.Stats("alice")
	require.NoError(t, err)
	assert.Equal(t, 100, stats.Used)
}
