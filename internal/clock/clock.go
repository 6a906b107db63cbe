package clock

import "time"

// Clock supplies the current time so weekday and expiry decisions can be
// pinned in tests.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock in the local timezone.
type System struct{}

// Now returns time.Now().
func (System) Now() time.Time { return time.Now() }

// Fixed always returns the same instant.
type Fixed struct {
	T time.Time
}

// Now returns the fixed instant.
func (f Fixed) Now() time.Time { return f.T }
