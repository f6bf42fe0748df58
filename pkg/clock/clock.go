// Package clock provides an injectable time source so time-gated guards stay
// testable with synthetic times.
package clock

import "time"

// Clock yields the current wall-clock time.
type Clock interface {
	Now() time.Time
}

// System reads the operating system clock.
type System struct{}

// Now returns the current system time.
func (System) Now() time.Time {
	return time.Now()
}

// Fixed is a settable clock for tests.
type Fixed struct {
	T time.Time
}

// Now returns the fixed time.
func (f *Fixed) Now() time.Time {
	return f.T
}

// Set moves the fixed clock to t.
func (f *Fixed) Set(t time.Time) {
	f.T = t
}
