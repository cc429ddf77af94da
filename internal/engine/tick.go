// Package engine runs the simulation: one worker goroutine per robot, a
// shared lock-guarded world map, and the aggregate counters robots report to.
package engine

import (
	"sync/atomic"
	"time"
)

// Default clock settings.
const (
	DefaultInterval  = 500 * time.Millisecond
	DefaultMinimum   = 100 * time.Millisecond
	DefaultSpeedStep = 100 * time.Millisecond
	MaxInterval      = 10 * time.Second
)

// Clock holds the play/pause flag and the tick interval shared by every
// worker. Both are atomics so status reads never wait on the map lock.
type Clock struct {
	running  atomic.Bool
	interval atomic.Int64 // nanoseconds

	min  time.Duration
	step time.Duration
}

// NewClock creates a paused clock. Non-positive values fall back to the
// defaults, and the interval is never allowed below min.
func NewClock(interval, min, step time.Duration) *Clock {
	if min <= 0 {
		min = DefaultMinimum
	}
	if step <= 0 {
		step = DefaultSpeedStep
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if interval < min {
		interval = min
	}
	c := &Clock{min: min, step: step}
	c.interval.Store(int64(interval))
	return c
}

// Play lets workers advance.
func (c *Clock) Play() {
	c.running.Store(true)
}

// Pause stops workers from advancing; they keep sleeping one tick at a time.
func (c *Clock) Pause() {
	c.running.Store(false)
}

// Running reports whether the simulation is playing.
func (c *Clock) Running() bool {
	return c.running.Load()
}

// Interval returns the current tick interval.
func (c *Clock) Interval() time.Duration {
	return time.Duration(c.interval.Load())
}

// Faster shortens the interval by one step, floored at the minimum.
func (c *Clock) Faster() time.Duration {
	return c.adjust(-c.step)
}

// Slower lengthens the interval by one step, capped at MaxInterval.
func (c *Clock) Slower() time.Duration {
	return c.adjust(c.step)
}

func (c *Clock) adjust(delta time.Duration) time.Duration {
	for {
		cur := c.interval.Load()
		next := time.Duration(cur) + delta
		if next < c.min {
			next = c.min
		}
		if next > MaxInterval {
			next = MaxInterval
		}
		if c.interval.CompareAndSwap(cur, int64(next)) {
			return next
		}
	}
}
