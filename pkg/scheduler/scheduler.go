package scheduler

import "time"

// Handle cancels a scheduled callback. Stop reports whether the callback was
// prevented from running.
type Handle interface {
	Stop() bool
}

// Scheduler runs a callback once after a delay. Owners keep the returned
// handle and stop it on every phase exit so no timer outlives its phase.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) Handle
}

// Clock supplies the current time. Kept separate from Scheduler so countdown
// math can always be recomputed from absolute instants.
type Clock interface {
	Now() time.Time
}

// Real schedules on the runtime timer wheel and reads the wall clock.
type Real struct{}

// New creates a wall-clock scheduler.
func New() Real { return Real{} }

func (Real) Schedule(d time.Duration, fn func()) Handle {
	return timerHandle{t: time.AfterFunc(d, fn)}
}

func (Real) Now() time.Time { return time.Now() }

type timerHandle struct {
	t *time.Timer
}

func (h timerHandle) Stop() bool { return h.t.Stop() }
