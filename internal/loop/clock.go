package loop

import "sync/atomic"

// Clock is a monotonic logical clock for scheduling order.
//
// Every task submitted to a Loop is stamped with a strictly increasing seq
// number from this clock. This makes the scheduling order explicit and
// testable without reference to wall time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though the Loop's single-threaded discipline means contention is rare.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
