package ratelimit

import (
	"time"
)

// FixedWindow implements the fixed window counter.
//
// Time is cut into consecutive windows of equal length. Each window admits
// up to maxRequests requests; the count resets when a request arrives in a
// different window.
//
// # Algorithm
//
//  1. index = floor(now / window)
//  2. If index differs from the stored index, store it and reset the count
//  3. If count < maxRequests: increment and allow
//  4. Otherwise: reject
//
// Up to 2*maxRequests requests can be admitted around a window boundary
// (maxRequests at the end of one window, maxRequests at the start of the
// next). That is inherent to the algorithm.
type FixedWindow struct {
	window      time.Duration
	maxRequests int

	windowIndex int64
	count       int
}

// NewFixedWindow creates a fixed window counter whose first window is the
// one containing now.
func NewFixedWindow(window time.Duration, maxRequests int, now time.Time) *FixedWindow {
	fw := &FixedWindow{
		window:      window,
		maxRequests: maxRequests,
	}
	fw.windowIndex = fw.indexOf(now)
	return fw
}

// Allow admits the request if the current window has room.
func (fw *FixedWindow) Allow(now time.Time) bool {
	if idx := fw.indexOf(now); idx != fw.windowIndex {
		fw.windowIndex = idx
		fw.count = 0
	}

	if fw.count < fw.maxRequests {
		fw.count++
		return true
	}
	return false
}

// Kind returns KindFixedWindow.
func (fw *FixedWindow) Kind() Kind {
	return KindFixedWindow
}

// Stats returns the count of the last observed window.
func (fw *FixedWindow) Stats() Stats {
	return Stats{Kind: KindFixedWindow, Used: fw.count, Limit: fw.maxRequests}
}

// WindowIndex returns the index of the last observed window.
func (fw *FixedWindow) WindowIndex() int64 {
	return fw.windowIndex
}

// indexOf returns floor(now / window), rounding toward negative infinity
// for times before the epoch.
func (fw *FixedWindow) indexOf(now time.Time) int64 {
	n := now.UnixNano()
	w := fw.window.Nanoseconds()

	idx := n / w
	if n%w != 0 && n < 0 {
		idx--
	}
	return idx
}
