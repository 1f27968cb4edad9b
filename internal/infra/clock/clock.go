// Package clock provides the time source and the single-goroutine executor
// that the stream engine runs on.
package clock

import "time"

// Timer is a cancellable pending callback.
type Timer interface {
	// Stop prevents the callback from firing. It reports whether the call
	// stopped the timer.
	Stop() bool
}

// Clock abstracts wall time so timing logic can be driven by tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Executor runs callbacks one at a time. Everything scheduled through an
// Executor, including timer callbacks, runs on the executor's goroutine.
type Executor interface {
	Now() time.Time
	// AfterFunc schedules f on the executor after d.
	AfterFunc(d time.Duration, f func()) Timer
	// Post schedules f on the executor as soon as possible.
	Post(f func())
}

type realClock struct{}

// Real returns the system clock.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
