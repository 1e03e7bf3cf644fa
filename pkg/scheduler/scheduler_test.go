package scheduler

import (
	"testing"
	"time"
)

func TestManualFiresInDueOrder(t *testing.T) {
	m := NewManual(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	var got []string
	m.Schedule(3*time.Second, func() { got = append(got, "c") })
	m.Schedule(1*time.Second, func() { got = append(got, "a") })
	m.Schedule(2*time.Second, func() { got = append(got, "b") })

	m.Advance(5 * time.Second)

	want := "abc"
	joined := ""
	for _, s := range got {
		joined += s
	}
	if joined != want {
		t.Fatalf("fire order = %q, want %q", joined, want)
	}
}

func TestManualStopPreventsFire(t *testing.T) {
	m := NewManual(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	fired := false
	h := m.Schedule(time.Second, func() { fired = true })
	if !h.Stop() {
		t.Fatal("expected Stop to report cancellation")
	}
	m.Advance(2 * time.Second)
	if fired {
		t.Fatal("stopped callback fired")
	}
	if h.Stop() {
		t.Fatal("second Stop should report false")
	}
}

func TestManualRescheduleWithinAdvance(t *testing.T) {
	m := NewManual(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	ticks := 0
	var tick func()
	tick = func() {
		ticks++
		if ticks < 3 {
			m.Schedule(time.Second, tick)
		}
	}
	m.Schedule(time.Second, tick)

	m.Advance(10 * time.Second)
	if ticks != 3 {
		t.Fatalf("ticks = %d, want 3", ticks)
	}
	if m.Now().Sub(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) != 10*time.Second {
		t.Fatalf("clock did not land on advance target: %v", m.Now())
	}
}

func TestManualClockDuringCallback(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManual(start)

	var at time.Time
	m.Schedule(3*time.Second, func() { at = m.Now() })
	m.Advance(10 * time.Second)

	if !at.Equal(start.Add(3 * time.Second)) {
		t.Fatalf("callback saw %v, want %v", at, start.Add(3*time.Second))
	}
}
