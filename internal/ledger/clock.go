package ledger

import "sync/atomic"

// Clock is a monotonic logical clock for transaction ordering.
//
// Every applied transaction is stamped with a strictly increasing seq
// from this clock, so replay reproduces the single writer's total
// order without wall-clock races.
//
// Thread-safety: atomic operations, though the engine's single-writer
// design means only one goroutine typically calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming from a known position, used by
// recovery to continue after the last logged seq.
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
