// Package clock abstracts wall-clock and monotonic time so the orchestrator
// can derive runtime state and schedule timers without racing a system clock
// jump, and so tests can drive contest progression without real sleeps.
package clock

import (
	"sync"
	"time"
)

// Cancel stops a scheduled timer or ticker. Calling it more than once, or
// after the callback already fired, is a no-op.
type Cancel func()

// Clock is the C1 collaborator: monotonic now, one-shot and interval timers
// with explicit cancellation. Wall-clock time (Now) feeds runtime-state
// derivation; Monotonic feeds elapsed-time invariants like remainingTime.
type Clock interface {
	// Now returns wall-clock time, used for runtime-state derivation
	// (UPCOMING/ACTIVE/COMPLETED) against startAt/endAt.
	Now() time.Time
	// Monotonic returns an elapsed duration since an arbitrary, fixed
	// starting point. Only differences between two calls are meaningful.
	Monotonic() time.Duration
	// After schedules f to run once after d elapses. The returned Cancel
	// prevents f from running if called before it fires.
	After(d time.Duration, f func()) Cancel
	// Every schedules f to run repeatedly every d until cancelled.
	Every(d time.Duration, f func()) Cancel
}

// System is the production Clock, backed by time.Now/time.AfterFunc/time.NewTicker.
type System struct {
	start time.Time
}

// NewSystem returns a Clock backed by the real wall clock.
func NewSystem() *System {
	return &System{start: time.Now()}
}

func (s *System) Now() time.Time { return time.Now() }

func (s *System) Monotonic() time.Duration { return time.Since(s.start) }

func (s *System) After(d time.Duration, f func()) Cancel {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

func (s *System) Every(d time.Duration, f func()) Cancel {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				f()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
