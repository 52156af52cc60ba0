// Package clock provides time abstraction for testing and production use.
// Schedulers and the frame loop take a Clock so tests can drive timers
// deterministically with a MockClock.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock provides an abstraction for time operations.
// Use RealClock in production and MockClock in tests.
type Clock interface {
	// Now returns the current time
	Now() time.Time
	// NewTimer returns a one-shot timer that fires after d
	NewTimer(d time.Duration) Timer
}

// Timer is the subset of *time.Timer the schedulers need.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
	Reset(d time.Duration) bool
}

// RealClock implements Clock using actual system time.
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// NewTimer wraps time.NewTimer.
func (RealClock) NewTimer(d time.Duration) Timer {
	return &realTimer{t: time.NewTimer(d)}
}

type realTimer struct {
	t *time.Timer
}

func (r *realTimer) C() <-chan time.Time        { return r.t.C }
func (r *realTimer) Stop() bool                 { return r.t.Stop() }
func (r *realTimer) Reset(d time.Duration) bool { return r.t.Reset(d) }

// Sleep blocks for d on c, returning early with ctx.Err() if ctx is done.
func Sleep(ctx context.Context, c Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := c.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MockClock implements Clock and provides a controllable, thread-safe time for tests.
// Timers created from it fire when Set or Advance moves the time past their deadline.
type MockClock struct {
	mu          sync.Mutex
	currentTime time.Time
	timers      []*mockTimer
}

// NewMockClock creates a new MockClock set to the specified time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{currentTime: t}
}

// Now returns the mock clock's current time.
func (m *MockClock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

// NewTimer registers a timer against the mock time. A non-positive d fires immediately.
func (m *MockClock) NewTimer(d time.Duration) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &mockTimer{clock: m, ch: make(chan time.Time, 1), deadline: m.currentTime.Add(d), active: true}
	m.timers = append(m.timers, t)
	m.fireLocked()
	return t
}

// Set changes the mock clock's current time and fires due timers.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = t
	m.fireLocked()
}

// Advance moves the mock clock by the specified duration and fires due timers.
// Use positive durations to move forward, negative to move backward.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = m.currentTime.Add(d)
	m.fireLocked()
}

// PendingTimers reports how many timers are armed.
func (m *MockClock) PendingTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if t.active {
			n++
		}
	}
	return n
}

func (m *MockClock) fireLocked() {
	kept := m.timers[:0]
	for _, t := range m.timers {
		if !t.active {
			continue
		}
		if !t.deadline.After(m.currentTime) {
			t.active = false
			select {
			case t.ch <- m.currentTime:
			default:
			}
			continue
		}
		kept = append(kept, t)
	}
	m.timers = kept
}

type mockTimer struct {
	clock    *MockClock
	ch       chan time.Time
	deadline time.Time
	active   bool
}

func (t *mockTimer) C() <-chan time.Time { return t.ch }

func (t *mockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := t.active
	t.active = false
	return wasActive
}

func (t *mockTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasActive := t.active
	t.deadline = t.clock.currentTime.Add(d)
	if !wasActive {
		t.active = true
		t.clock.timers = append(t.clock.timers, t)
	}
	t.clock.fireLocked()
	return wasActive
}
