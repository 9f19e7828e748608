// Package clock paces sample acquisition against absolute deadlines.
package clock

import (
	"context"
	"time"
)

// Clock computes how long to wait before reading sample N so that sample N
// lands at start + N*interval. Deadlines are absolute, so a late tick only
// shortens the following waits instead of pushing every later sample back.
type Clock struct {
	interval time.Duration
	start    time.Time
	now      func() time.Time
}

// Option configures a Clock.
type Option func(*Clock)

// WithNow replaces the time source.
func WithNow(now func() time.Time) Option {
	return func(c *Clock) {
		c.now = now
	}
}

// New creates a clock with the given sample interval. The start time is
// captured from the time source at construction.
func New(interval time.Duration, opts ...Option) *Clock {
	c := &Clock{
		interval: interval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.start = c.now()
	return c
}

// Interval returns the nominal sample interval.
func (c *Clock) Interval() time.Duration {
	return c.interval
}

// Start returns the reference time of sample 0.
func (c *Clock) Start() time.Time {
	return c.start
}

// Reset re-anchors the clock so that sample index is due now. Samples
// before index keep their place on the new timeline.
func (c *Clock) Reset(index uint64) {
	c.start = c.now().Add(-time.Duration(index) * c.interval)
}

// Deadline returns the absolute time sample index is due.
func (c *Clock) Deadline(index uint64) time.Time {
	return c.start.Add(time.Duration(index) * c.interval)
}

// Next returns the sleep needed to reach the deadline of sample index,
// never negative.
func (c *Clock) Next(index uint64) time.Duration {
	target := time.Duration(index) * c.interval
	elapsed := c.now().Sub(c.start)
	if sleep := target - elapsed; sleep > 0 {
		return sleep
	}
	return 0
}

// Behind returns how far the current time is past the deadline of sample
// index, or zero if the deadline has not passed.
func (c *Clock) Behind(index uint64) time.Duration {
	if late := c.now().Sub(c.Deadline(index)); late > 0 {
		return late
	}
	return 0
}

// Wait blocks until the deadline of sample index or until ctx is done.
func (c *Clock) Wait(ctx context.Context, index uint64) error {
	d := c.Next(index)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
