package eventloop

import (
	"sort"
	"time"
)

// Manual is a Scheduler driven by hand. Time only moves when Advance is
// called, which makes poll cycles deterministic in tests.
type Manual struct {
	now     time.Duration
	seq     int
	pending []*manualTimer
}

type manualTimer struct {
	m         *Manual
	due       time.Duration
	seq       int
	fn        func()
	cancelled bool
	fired     bool
}

func (t *manualTimer) Cancel() bool {
	if t.fired || t.cancelled {
		return false
	}
	t.cancelled = true
	t.m.remove(t)
	return true
}

// NewManual returns a Manual scheduler at time zero.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{m: m, due: m.now + d, seq: m.seq, fn: fn}
	m.pending = append(m.pending, t)
	return t
}

// Advance moves the clock forward by d and runs every callback that falls
// due, including ones scheduled by callbacks during the advance. It returns
// the number of callbacks run.
func (m *Manual) Advance(d time.Duration) int {
	target := m.now + d
	ran := 0
	for {
		next := m.next()
		if next == nil || next.due > target {
			break
		}
		m.now = next.due
		m.fire(next)
		ran++
	}
	m.now = target
	return ran
}

// RunNext jumps to the earliest pending callback and runs it.
func (m *Manual) RunNext() bool {
	next := m.next()
	if next == nil {
		return false
	}
	if next.due > m.now {
		m.now = next.due
	}
	m.fire(next)
	return true
}

// Pending reports how many callbacks are scheduled and not cancelled.
func (m *Manual) Pending() int {
	return len(m.pending)
}

// Now returns the scheduler's elapsed time.
func (m *Manual) Now() time.Duration {
	return m.now
}

func (m *Manual) next() *manualTimer {
	if len(m.pending) == 0 {
		return nil
	}
	sort.SliceStable(m.pending, func(i, j int) bool {
		if m.pending[i].due == m.pending[j].due {
			return m.pending[i].seq < m.pending[j].seq
		}
		return m.pending[i].due < m.pending[j].due
	})
	return m.pending[0]
}

func (m *Manual) fire(t *manualTimer) {
	m.remove(t)
	t.fired = true
	t.fn()
}

func (m *Manual) remove(t *manualTimer) {
	for i, p := range m.pending {
		if p == t {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}
