package mocks

import (
	"sync"
	"time"

	"github.com/mcoot/cardroom/internal/dependencies/clock"
)

var _ clock.Clock = (*MockClock)(nil)

// MockClock is a Clock that only moves when a test moves it
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a MockClock stopped at t (converted to UTC)
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t.UTC()}
}

// Now returns the mocked current time
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new time
func (c *MockClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// Set moves the clock to t
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}
