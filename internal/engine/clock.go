package engine

import "sync/atomic"

// Clock is the monotonic logical clock that stamps answers and evaluations.
//
// Every recorded answer and stored evaluation gets a strictly increasing seq.
// "Latest answer" and "answers as of an evaluation" are defined by seq alone,
// never by wall time, so replaying a log reproduces the same answer states.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start, typically the store's
// last seq.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
