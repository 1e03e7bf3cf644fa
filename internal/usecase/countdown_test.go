package usecase

import (
	"testing"
	"time"

	"SignalDesk/pkg/scheduler"
)

func TestCountdownTicksDownToExpiry(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := scheduler.NewManual(start)
	c := NewCountdownClock(m, m, time.Second)

	var ticks []time.Duration
	expired := 0
	c.Start(start.Add(3*time.Second),
		func(remaining time.Duration) { ticks = append(ticks, remaining) },
		func() { expired++ },
	)

	m.Advance(5 * time.Second)

	want := []time.Duration{3 * time.Second, 2 * time.Second, time.Second, 0}
	if len(ticks) != len(want) {
		t.Fatalf("ticks = %v, want %v", ticks, want)
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Fatalf("tick %d = %v, want %v", i, ticks[i], want[i])
		}
	}
	if expired != 1 {
		t.Fatalf("expired fired %d times, want exactly 1", expired)
	}
	if m.PendingCount() != 0 {
		t.Fatalf("timers still pending after expiry")
	}
}

func TestCountdownRecomputesFromAbsoluteInstant(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := scheduler.NewManual(start)
	c := NewCountdownClock(m, m, time.Second)

	var last time.Duration
	expired := 0
	c.Start(start.Add(10*time.Second),
		func(remaining time.Duration) { last = remaining },
		func() { expired++ },
	)

	// A jump well past the settlement instant: remaining never goes
	// negative and expiry still fires exactly once.
	m.Advance(time.Minute)
	if last != 0 {
		t.Fatalf("remaining after jump = %v, want 0", last)
	}
	if expired != 1 {
		t.Fatalf("expired fired %d times, want 1", expired)
	}
}

func TestCountdownStartAtPastInstantExpiresImmediately(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := scheduler.NewManual(start)
	c := NewCountdownClock(m, m, time.Second)

	expired := 0
	c.Start(start.Add(-time.Second), nil, func() { expired++ })
	if expired != 1 {
		t.Fatalf("expired fired %d times, want 1 without any advance", expired)
	}
}

func TestCountdownStopPreventsExpiry(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := scheduler.NewManual(start)
	c := NewCountdownClock(m, m, time.Second)

	expired := 0
	c.Start(start.Add(3*time.Second), nil, func() { expired++ })
	c.Stop()
	m.Advance(10 * time.Second)
	if expired != 0 {
		t.Fatalf("expired fired after Stop")
	}
}

func TestCountdownRestartResetsExpiry(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := scheduler.NewManual(start)
	c := NewCountdownClock(m, m, time.Second)

	expired := 0
	c.Start(start.Add(time.Second), nil, func() { expired++ })
	m.Advance(time.Second)
	if expired != 1 {
		t.Fatalf("first run expired %d times, want 1", expired)
	}

	c.Start(m.Now().Add(2*time.Second), nil, func() { expired++ })
	m.Advance(2 * time.Second)
	if expired != 2 {
		t.Fatalf("second run expired, total = %d, want 2", expired)
	}
}
