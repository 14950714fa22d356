package frame

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

// TimeProvider is the source of wall-clock time for cooldowns and staggered retries.
type TimeProvider interface {
	Now() time.Time
	// After returns a channel that receives once d has elapsed.
	After(d time.Duration) <-chan time.Time
}

// SystemTime provides the real system time.
type SystemTime struct{}

// Now ...
func (SystemTime) Now() time.Time {
	return time.Now()
}

// After ...
func (SystemTime) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

type mockTimer struct {
	at time.Time
	ch chan time.Time
}

// MockTime provides a controllable time source for testing. Channels returned by After only fire
// when Advance or SetTime moves the clock past their deadline.
type MockTime struct {
	mu      deadlock.Mutex
	current time.Time
	timers  []mockTimer
}

// NewMockTime creates a new mock time provider with the given start time.
func NewMockTime(start time.Time) *MockTime {
	return &MockTime{current: start}
}

// Now returns the current mocked time.
func (m *MockTime) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// After ...
func (m *MockTime) After(d time.Duration) <-chan time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- m.current
		return ch
	}
	m.timers = append(m.timers, mockTimer{at: m.current.Add(d), ch: ch})
	return ch
}

// Pending returns the number of After channels that have not fired yet.
func (m *MockTime) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// SetTime sets the current time for the mock.
func (m *MockTime) SetTime(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = t
	m.fire()
}

// Advance advances the current time by the given duration.
func (m *MockTime) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(d)
	m.fire()
}

func (m *MockTime) fire() {
	kept := m.timers[:0]
	for _, t := range m.timers {
		if t.at.After(m.current) {
			kept = append(kept, t)
			continue
		}
		t.ch <- m.current
	}
	m.timers = kept
}
