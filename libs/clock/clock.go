package clock

import "time"

// Clock abstracts time lookup so it can be managed in tests
type Clock interface {
	Now() time.Time
}

type clock struct{}

// New returns a Clock backed by the system time
func New() Clock {
	return clock{}
}

// Now returns the current time
func (clock) Now() time.Time {
	return time.Now()
}

// ManagedClock is a hand managed clock. Intended for tests
type ManagedClock struct {
	startTime time.Time
	offset    time.Duration
}

// NewManaged returns an initialized instance of ManagedClock for use in tests
func NewManaged(startTime time.Time) *ManagedClock {
	return &ManagedClock{startTime: startTime}
}

// Now returns the current managed time
func (c *ManagedClock) Now() time.Time {
	return c.startTime.Add(c.offset)
}

// WarpForward moves time forward by the provided offset and returns the new time
func (c *ManagedClock) WarpForward(offset time.Duration) time.Time {
	c.offset += offset
	return c.startTime.Add(c.offset)
}

// Why is there no WarpBackward? Time should never go backwards, especially in your tests
