package engine

import "time"

// Scheduler runs the next phase of a match after an intentional delay.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// Immediate runs fn inline and ignores the delay.
type Immediate struct{}

func (Immediate) After(_ time.Duration, fn func()) { fn() }

// TimerScheduler runs fn on its own goroutine once d elapses.
type TimerScheduler struct{}

func (TimerScheduler) After(d time.Duration, fn func()) {
	if d <= 0 {
		go fn()
		return
	}
	time.AfterFunc(d, fn)
}
