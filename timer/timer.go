// Package timer provides wall-clock sources for the virtual clock.
//
// Provides two implementations:
// 1. Real - Production source using time.Now and time.AfterFunc
// 2. Mock - Controllable source for deterministic tests
package timer

import (
	"sort"
	"sync"
	"time"
)

// Source reads wall-clock time and schedules callbacks against it.
// All implementations must be safe for concurrent use.
type Source interface {
	// Now returns the current wall-clock time.
	Now() time.Time

	// AfterFunc arranges for f to be called once d of wall time has elapsed.
	AfterFunc(d time.Duration, f func()) Handle
}

// Handle is a scheduled callback returned by Source.AfterFunc.
type Handle interface {
	// Stop cancels the callback. It returns false if the callback has
	// already fired or been stopped.
	Stop() bool
}

// Real implements Source using the system clock.
// Callbacks run on their own goroutine.
type Real struct{}

// NewReal creates a new Real source.
func NewReal() *Real {
	return &Real{}
}

// Now returns time.Now().
func (r *Real) Now() time.Time {
	return time.Now()
}

// AfterFunc delegates to time.AfterFunc.
func (r *Real) AfterFunc(d time.Duration, f func()) Handle {
	return time.AfterFunc(d, f)
}

// Mock implements Source for testing with manual control.
// Time only moves on Advance or AdvanceTo, which fire due callbacks
// synchronously on the calling goroutine.
// Safe for concurrent use.
type Mock struct {
	mu      sync.Mutex
	current time.Time
	seq     uint64
	pending []*mockHandle
}

type mockHandle struct {
	mock     *Mock
	deadline time.Time
	seq      uint64
	f        func()
	done     bool
}

// NewMock creates a Mock starting at the given time.
func NewMock(start time.Time) *Mock {
	return &Mock{current: start}
}

// Now returns the mock time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// AfterFunc registers f to fire once mock time reaches Now()+d.
// Non-positive durations fire on the next Advance, even Advance(0).
func (m *Mock) AfterFunc(d time.Duration, f func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d < 0 {
		d = 0
	}
	m.seq++
	h := &mockHandle{
		mock:     m,
		deadline: m.current.Add(d),
		seq:      m.seq,
		f:        f,
	}
	m.pending = append(m.pending, h)
	return h
}

// Advance moves mock time forward by d, firing due callbacks.
// Negative durations are treated as zero.
func (m *Mock) Advance(d time.Duration) {
	if d < 0 {
		d = 0
	}
	m.mu.Lock()
	target := m.current.Add(d)
	m.mu.Unlock()

	m.AdvanceTo(target)
}

// AdvanceTo moves mock time forward to target, firing every callback whose
// deadline is at or before target in deadline order (ties by registration
// order). Before each callback runs, mock time is set to its deadline, so a
// callback that registers another one measures from its own firing time.
// If target is before the current time, time does not move backward but
// already-due callbacks still fire.
func (m *Mock) AdvanceTo(target time.Time) {
	for {
		m.mu.Lock()
		h := m.nextDue(target)
		if h == nil {
			if target.After(m.current) {
				m.current = target
			}
			m.mu.Unlock()
			return
		}
		h.done = true
		m.remove(h)
		if h.deadline.After(m.current) {
			m.current = h.deadline
		}
		m.mu.Unlock()

		h.f()
	}
}

// Pending returns the number of callbacks waiting to fire.
func (m *Mock) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// nextDue returns the earliest pending callback due at or before target.
// Must be called with m.mu held.
func (m *Mock) nextDue(target time.Time) *mockHandle {
	if len(m.pending) == 0 {
		return nil
	}
	sort.SliceStable(m.pending, func(i, j int) bool {
		a, b := m.pending[i], m.pending[j]
		if a.deadline.Equal(b.deadline) {
			return a.seq < b.seq
		}
		return a.deadline.Before(b.deadline)
	})
	h := m.pending[0]
	if h.deadline.After(target) && h.deadline.After(m.current) {
		return nil
	}
	return h
}

// remove drops h from the pending list. Must be called with m.mu held.
func (m *Mock) remove(h *mockHandle) {
	for i, p := range m.pending {
		if p == h {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}

// Stop cancels the callback if it has not fired yet.
func (h *mockHandle) Stop() bool {
	h.mock.mu.Lock()
	defer h.mock.mu.Unlock()

	if h.done {
		return false
	}
	h.done = true
	h.mock.remove(h)
	return true
}

// Compile-time interface checks.
var (
	_ Source = (*Real)(nil)
	_ Source = (*Mock)(nil)
)
