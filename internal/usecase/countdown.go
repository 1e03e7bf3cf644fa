package usecase

import (
	"sync"
	"time"

	"SignalDesk/pkg/scheduler"
)

// CountdownClock ticks once per second while a commitment waits for its
// settlement instant. Remaining time is always recomputed from the absolute
// settlesAt, never from accumulated ticks, so a backgrounded or suspended
// process cannot drift. Expiry fires exactly once.
type CountdownClock struct {
	sched scheduler.Scheduler
	clock scheduler.Clock
	tick  time.Duration

	mu      sync.Mutex
	handle  scheduler.Handle
	expired bool
}

// NewCountdownClock creates a countdown driven by the given scheduler.
func NewCountdownClock(sched scheduler.Scheduler, clock scheduler.Clock, tick time.Duration) *CountdownClock {
	return &CountdownClock{sched: sched, clock: clock, tick: tick}
}

// Start begins ticking toward settlesAt. onTick receives the remaining
// duration each tick; onExpired fires once when it reaches zero. A countdown
// started at or past settlesAt expires on its first tick.
func (c *CountdownClock) Start(settlesAt time.Time, onTick func(time.Duration), onExpired func()) {
	c.mu.Lock()
	c.stopLocked()
	c.expired = false
	c.mu.Unlock()

	c.step(settlesAt, onTick, onExpired)
}

func (c *CountdownClock) step(settlesAt time.Time, onTick func(time.Duration), onExpired func()) {
	remaining := settlesAt.Sub(c.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	if onTick != nil {
		onTick(remaining)
	}

	if remaining == 0 {
		c.mu.Lock()
		already := c.expired
		c.expired = true
		c.handle = nil
		c.mu.Unlock()
		if !already && onExpired != nil {
			onExpired()
		}
		return
	}

	delay := c.tick
	if remaining < delay {
		delay = remaining
	}
	c.mu.Lock()
	if c.expired {
		c.mu.Unlock()
		return
	}
	c.handle = c.sched.Schedule(delay, func() {
		c.step(settlesAt, onTick, onExpired)
	})
	c.mu.Unlock()
}

// Stop cancels the countdown without firing expiry.
func (c *CountdownClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.expired = true
}

func (c *CountdownClock) stopLocked() {
	if c.handle != nil {
		c.handle.Stop()
		c.handle = nil
	}
}
