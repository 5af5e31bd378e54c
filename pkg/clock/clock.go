// Package clock supplies the current time to rate limiters.
//
// Production code uses System, which reads the wall clock (with Go's
// monotonic reading attached). Tests and the simulate command use Manual,
// whose time only moves when told to, so window boundaries and leak
// accumulation can be exercised deterministically.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System is a Clock backed by time.Now.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time {
	return time.Now()
}

// Manual is a Clock that only advances when Set or Advance is called.
// It is safe for concurrent use.
type Manual struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManual creates a Manual clock reading start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// NewManualSeconds creates a Manual clock reading the given number of
// seconds after the Unix epoch. Fractional seconds are kept to the nanosecond.
func NewManualSeconds(seconds float64) *Manual {
	return NewManual(FromSeconds(seconds))
}

// Now returns the clock's current reading.
func (m *Manual) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Set moves the clock to t. Moving backwards is allowed.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// SetSeconds moves the clock to the given number of seconds after the Unix epoch.
func (m *Manual) SetSeconds(seconds float64) {
	m.Set(FromSeconds(seconds))
}

// Advance moves the clock forward by d and returns the new reading.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

// FromSeconds converts seconds since the Unix epoch into a UTC time.Time.
func FromSeconds(seconds float64) time.Time {
	return time.Unix(0, int64(seconds*float64(time.Second))).UTC()
}

// Seconds converts t into fractional seconds since the Unix epoch.
func Seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
