package ratelimit

import (
	"time"
)

// SlidingWindowLog implements the sliding window log.
//
// The log keeps the arrival time of every request seen within the last
// window. A request is admitted when, after expired entries are evicted and
// its own timestamp is appended, the log holds at most maxRequests entries.
//
// # Rejected Requests
//
// By default a rejected request keeps its slot in the log until it ages out,
// so a client that keeps retrying while limited stays limited, and the log
// can grow past maxRequests during a reject storm. With dropRejected set the
// timestamp is removed again on rejection, which bounds the log at
// maxRequests and lets rejected traffic go unpenalized.
type SlidingWindowLog struct {
	window       time.Duration
	maxRequests  int
	dropRejected bool

	log []time.Time
}

// NewSlidingWindowLog creates an empty log that keeps rejected requests.
func NewSlidingWindowLog(window time.Duration, maxRequests int) *SlidingWindowLog {
	return &SlidingWindowLog{
		window:      window,
		maxRequests: maxRequests,
	}
}

// Allow evicts expired entries, records now and checks the limit.
func (sw *SlidingWindowLog) Allow(now time.Time) bool {
	sw.evict(now)
	sw.log = append(sw.log, now)

	if len(sw.log) <= sw.maxRequests {
		return true
	}

	if sw.dropRejected {
		sw.log = sw.log[:len(sw.log)-1]
	}
	return false
}

// Kind returns KindSlidingWindowLog.
func (sw *SlidingWindowLog) Kind() Kind {
	return KindSlidingWindowLog
}

// Stats returns the log length as of the last call.
func (sw *SlidingWindowLog) Stats() Stats {
	return Stats{Kind: KindSlidingWindowLog, Used: len(sw.log), Limit: sw.maxRequests}
}

// Len returns the number of timestamps currently retained.
func (sw *SlidingWindowLog) Len() int {
	return len(sw.log)
}

// evict removes entries older than the window from the front of the log.
// An entry exactly window old is kept.
func (sw *SlidingWindowLog) evict(now time.Time) {
	n := 0
	for n < len(sw.log) && now.Sub(sw.log[n]) > sw.window {
		n++
	}
	sw.log = compact(sw.log, n)
}
