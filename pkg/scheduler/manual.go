package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Manual is a deterministic Scheduler and Clock for tests. Time only moves
// when Advance is called; due callbacks run on the advancing goroutine in
// due order.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	seq     int
	pending []*manualEntry
}

type manualEntry struct {
	due     time.Time
	seq     int
	fn      func()
	stopped bool
}

// NewManual creates a manual scheduler starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Schedule(d time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	e := &manualEntry{due: m.now.Add(d), seq: m.seq, fn: fn}
	m.seq++
	m.pending = append(m.pending, e)
	return manualHandle{m: m, e: e}
}

// Advance moves the clock forward by d, firing every callback that comes due.
// Callbacks may schedule further work; anything falling within the same
// advance window fires too.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	for {
		e := m.nextDueLocked(target)
		if e == nil {
			break
		}
		if e.due.After(m.now) {
			m.now = e.due
		}
		fn := e.fn
		m.mu.Unlock()
		fn()
		m.mu.Lock()
	}
	m.now = target
	m.mu.Unlock()
}

// PendingCount returns the number of live scheduled callbacks.
func (m *Manual) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.pending {
		if !e.stopped {
			n++
		}
	}
	return n
}

func (m *Manual) nextDueLocked(target time.Time) *manualEntry {
	live := m.pending[:0]
	for _, e := range m.pending {
		if !e.stopped {
			live = append(live, e)
		}
	}
	m.pending = live
	sort.SliceStable(m.pending, func(i, j int) bool {
		if m.pending[i].due.Equal(m.pending[j].due) {
			return m.pending[i].seq < m.pending[j].seq
		}
		return m.pending[i].due.Before(m.pending[j].due)
	})
	for i, e := range m.pending {
		if !e.due.After(target) {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return e
		}
	}
	return nil
}

type manualHandle struct {
	m *Manual
	e *manualEntry
}

func (h manualHandle) Stop() bool {
	h.m.mu.Lock()
	defer h.m.mu.Unlock()
	if h.e.stopped {
		return false
	}
	h.e.stopped = true
	return true
}
