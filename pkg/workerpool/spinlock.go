package workerpool

import (
	"runtime"
	"sync/atomic"
)

// spinLock is a single test-and-set atomic flag. It must only guard
// constant-time work with no further blocking primitive and no call into
// user code — task invocation always happens outside every lock held by
// this package. Go's sync/atomic already gives CompareAndSwap and Store
// sequentially-consistent ordering, strictly stronger than the
// acquire-to-lock/release-to-unlock pairing this lock needs, so no
// separate memory-order knob exists.
type spinLock struct {
	state int32
}

// lock spins (yielding the processor between attempts) until the flag is
// acquired.
func (s *spinLock) lock() {
	for !atomic.CompareAndSwapInt32(&s.state, 0, 1) {
		runtime.Gosched()
	}
}

// tryLock attempts to acquire the flag without blocking.
func (s *spinLock) tryLock() bool {
	return atomic.CompareAndSwapInt32(&s.state, 0, 1)
}

// unlock releases the flag. Calling unlock without holding the lock is a
// programmer error and corrupts the lock state, same as a plain mutex.
func (s *spinLock) unlock() {
	atomic.StoreInt32(&s.state, 0)
}

// spinGuard locks on construction and unlocks on release. Blocking
// acquisitions in this package go through it; the non-blocking path
// (steadyWorker.tryHandOff) uses tryLock and unlock directly.
type spinGuard struct {
	l *spinLock
}

func newSpinGuard(l *spinLock) spinGuard {
	l.lock()
	return spinGuard{l: l}
}

func (g spinGuard) release() {
	g.l.unlock()
}
