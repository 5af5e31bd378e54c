package limits_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"turnstile-hq/turnstile/pkg/clock"
	"turnstile-hq/turnstile/pkg/limits"
	"turnstile-hq/turnstile/pkg/limits/ratelimit"
)

func ExampleRateLimiter() {
	clk := clock.NewManualSeconds(0)
	rl := limits.New[string](limits.WithClock(clk))

	_ = rl.AddIdentity("alice", ratelimit.FixedWindowConfig(time.Minute, 2))

	for range 3 {
		allowed, _ := rl.Allow(context.Background(), "alice")
		fmt.Println(allowed)
	}

	clk.Advance(time.Minute)
	allowed, _ := rl.Allow(context.Background(), "alice")
	fmt.Println(allowed)

	_, err := rl.Allow(context.Background(), "bob")
	fmt.Println(errors.Is(err, limits.ErrNotFound))

	// Output:
	// true
	// true
	// false
	// true
	// true
}

func ExampleRateLimiter_Reconcile() {
	rl := limits.New[string](limits.WithClock(clock.NewManualSeconds(0)))
	_ = rl.AddIdentity("old", ratelimit.DefaultSlidingWindowLogConfig())

	res := rl.Reconcile(map[string]limits.Config{
		"new": ratelimit.LeakyBucketConfig(10, 2),
	})

	fmt.Println("added:", res.Added)
	fmt.Println("removed:", res.Removed)

	// Output:
	// added: [new]
	// removed: [old]
}
