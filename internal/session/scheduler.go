package session

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Timer is a handle to one scheduled callback.
type Timer interface {
	// Stop cancels the callback. It reports false if the callback already
	// started or the timer was stopped before.
	Stop() bool
}

// Scheduler runs a callback once after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// ClockScheduler schedules on a clockwork clock, so tests can drive expiry
// with a FakeClock.
type ClockScheduler struct {
	Clock clockwork.Clock
}

func (s ClockScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return s.Clock.AfterFunc(d, fn)
}
