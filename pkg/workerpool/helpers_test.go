package workerpool

import "time"

// assertionWindow and assertionTick bound the testify assert.Eventually
// polls used across this package's tests for asynchronous worker
// behavior (admission, draining, convergence).
const (
	assertionWindow = 2 * time.Second
	assertionTick   = 5 * time.Millisecond
)

func timeoutFor(d time.Duration) <-chan time.Time {
	return time.After(d)
}
