package ratelimit

import (
	"time"
)

// LeakyBucket implements the leaky bucket as a queue.
//
// Every admitted request is queued with its arrival time. The bucket leaks
// queued requests from the front at leakRate per second, and a request is
// admitted only while the queue holds fewer than capacity entries.
//
// # Algorithm
//
//  1. Leak: units = floor((now - lastLeak) * leakRate)
//  2. If units > 0: drop min(units, len(queue)) oldest entries and set lastLeak = now
//  3. If len(queue) < capacity: append now and allow
//  4. Otherwise: reject
//
// Leaking happens in whole units. lastLeak only advances when at least one
// unit leaked, so partial progress carries over between calls.
type LeakyBucket struct {
	capacity int
	leakRate float64

	queue    []time.Time
	lastLeak time.Time
}

// NewLeakyBucket creates an empty bucket whose leak accounting starts at now.
func NewLeakyBucket(capacity int, leakRate float64, now time.Time) *LeakyBucket {
	return &LeakyBucket{
		capacity: capacity,
		leakRate: leakRate,
		queue:    make([]time.Time, 0, capacity),
		lastLeak: now,
	}
}

// Allow leaks the bucket up to now and admits the request if there is room.
func (lb *LeakyBucket) Allow(now time.Time) bool {
	lb.leak(now)

	if len(lb.queue) < lb.capacity {
		lb.queue = append(lb.queue, now)
		return true
	}
	return false
}

// Kind returns KindLeakyBucket.
func (lb *LeakyBucket) Kind() Kind {
	return KindLeakyBucket
}

// Stats returns the queue length as of the last call.
func (lb *LeakyBucket) Stats() Stats {
	return Stats{Kind: KindLeakyBucket, Used: len(lb.queue), Limit: lb.capacity}
}

// LastLeak returns the time of the last leak that removed at least one unit
// (or the creation time if none has).
func (lb *LeakyBucket) LastLeak() time.Time {
	return lb.lastLeak
}

// leak drops whole leaked units from the front of the queue.
func (lb *LeakyBucket) leak(now time.Time) {
	units := now.Sub(lb.lastLeak).Seconds() * lb.leakRate
	if units < 1 {
		return
	}

	// Compare as float first so very long idle periods cannot overflow int.
	n := len(lb.queue)
	if units < float64(n) {
		n = int(units)
	}

	lb.queue = compact(lb.queue, n)
	lb.lastLeak = now
}
