package engine

import "sync/atomic"

// Clock hands out arrival tickets. Every accepted report is stamped with a
// strictly increasing ticket, so log lines and replies can be matched to
// the order the Run loop saw them in.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next ticket.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last ticket handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
