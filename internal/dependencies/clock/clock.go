package clock

import "time"

// Clock provides the current time. Injected so expiry logic can be tested.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock in UTC
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current UTC time. Stored timestamps are always UTC so the
// SQL and Redis backends round-trip them without zone drift.
func (c *RealClock) Now() time.Time {
	return time.Now().UTC()
}
