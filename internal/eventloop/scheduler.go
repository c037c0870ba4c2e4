package eventloop

import "time"

// Scheduler runs callbacks after a delay on the loop's goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a pending callback returned by a Scheduler.
type Timer interface {
	// Cancel prevents the callback from running. It reports whether the call
	// stopped a callback that had not run yet.
	Cancel() bool
}
