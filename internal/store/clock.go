package store

import "sync/atomic"

// clock hands out the seq insertion marker.
//
// Every inserted point is stamped with a strictly increasing seq. Listing
// queries order by it, which gives samplers a stable candidate order and
// makes "most recent" queries independent of wall time. Values burned by a
// failed insert leave gaps; seq is monotonic, not dense.
type clock struct {
	seq atomic.Int64
}

// newClockAt creates a clock resuming after start (the largest stored seq).
func newClockAt(start int64) *clock {
	c := &clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *clock) Current() int64 {
	return c.seq.Load()
}
