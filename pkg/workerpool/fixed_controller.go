package workerpool

import (
	"sync"
	"sync/atomic"
)

// fixedWorker is the surface the shared fixed-pool controller needs from
// a worker, regardless of whether it is the swap (steady) or donate
// (balanced) variant: its outstanding task count and quiescence flag.
// Queueing and stealing are variant-specific and live on the concrete
// worker types.
type fixedWorker interface {
	base() *workerBase
}

// fixedController holds the state and admission/overflow/quiescence
// logic shared by SteadyPool and BalancedPool: the load-balancing
// cursor, per-worker capacity, steal configuration, the overflow buffer
// and refuse callback, and the two-pass quiescence wait.
// It is generic over the worker's enqueue shape via the workers field on
// each concrete pool type; this type only ever touches fixedWorker.
type fixedController struct {
	mu      sync.Mutex
	workers []fixedWorker
	cursor  int

	perWorkerCap int64 // 0 = unbounded
	moveLimit    int

	stealEnabled int32 // atomic bool
	stealMax     int32 // atomic

	stopping int32 // atomic bool

	overflowMu     sync.Mutex
	overflowBuf    []Task
	refuseCallback func()

	poolID  string
	kind    string
	metrics *Metrics
}

func newFixedController(workers []fixedWorker, totalCapacity int, poolID, kind string, metrics *Metrics) *fixedController {
	n := len(workers)
	var perWorkerCap int64
	if totalCapacity > 0 {
		perWorkerCap = int64(totalCapacity) / int64(n)
		if perWorkerCap < 1 {
			perWorkerCap = 1
		}
	}
	moveLimit := clampInt(n/4, 0, 4)
	if n == 1 {
		moveLimit = 0
	}
	return &fixedController{
		workers:      workers,
		perWorkerCap: perWorkerCap,
		moveLimit:    moveLimit,
		poolID:       poolID,
		kind:         kind,
		metrics:      metrics,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (c *fixedController) isStopping() bool {
	return atomic.LoadInt32(&c.stopping) == 1
}

func (c *fixedController) markStopping() {
	atomic.StoreInt32(&c.stopping, 1)
}

// moveCursorToLeastBusyLocked performs a bounded, approximate search for a
// lightly loaded worker: up to moveLimit one-step advances of a scratch
// index, keeping whichever of {current cursor, scratch} has fewer tasks
// whenever the current cursor is non-idle. Callers must hold c.mu.
func (c *fixedController) moveCursorToLeastBusyLocked() {
	if c.moveLimit == 0 || len(c.workers) <= 1 {
		return
	}
	n := len(c.workers)
	scratch := c.cursor
	for step := 0; step < c.moveLimit; step++ {
		scratch = (scratch + 1) % n
		cur := c.workers[c.cursor].base().count()
		if cur != 0 && c.workers[scratch].base().count() < cur {
			c.cursor = scratch
		}
	}
}

// admitLocked walks the cursor forward at most one full revolution,
// looking for a worker whose task count plus need stays within
// per-worker capacity. On success it leaves the cursor on that worker
// and returns true; on failure it leaves the cursor untouched and
// returns false. Callers must hold c.mu.
func (c *fixedController) admitLocked(need int64) bool {
	if c.perWorkerCap == 0 {
		return true
	}
	n := len(c.workers)
	for i := 0; i < n; i++ {
		idx := (c.cursor + i) % n
		if c.workers[idx].base().count()+need <= c.perWorkerCap {
			c.cursor = idx
			return true
		}
	}
	return false
}

// enableSteal sets the steal budget, defaulting to clamp(n/4, 1, 8) when
// max is 0, and rejects a budget that is not strictly less than the
// worker count.
func (c *fixedController) enableSteal(max int) error {
	n := len(c.workers)
	if max == 0 {
		max = clampInt(n/4, 1, 8)
	}
	if max >= n {
		return invalidArgument("steal budget %d must be less than worker count %d", max, n)
	}
	atomic.StoreInt32(&c.stealMax, int32(max))
	atomic.StoreInt32(&c.stealEnabled, 1)
	return nil
}

func (c *fixedController) disableSteal() {
	atomic.StoreInt32(&c.stealEnabled, 0)
}

func (c *fixedController) stealInfo() (enabled bool, max int) {
	return atomic.LoadInt32(&c.stealEnabled) == 1, int(atomic.LoadInt32(&c.stealMax))
}

// setRefuseCallback installs fn as the overflow recovery callback.
// Installing a callback on an unbounded pool is rejected: there is
// nothing to recover from if admission never fails.
func (c *fixedController) setRefuseCallback(fn func()) error {
	if c.perWorkerCap == 0 {
		return invalidArgument("refuse callback has no effect on an unbounded pool")
	}
	c.overflowMu.Lock()
	c.refuseCallback = fn
	c.overflowMu.Unlock()
	return nil
}

// handleOverflow clears the overflow buffer, appends tasks, and invokes
// the refuse callback if one is installed, synchronously on the calling
// goroutine. It reports whether a callback absorbed the overflow.
func (c *fixedController) handleOverflow(tasks ...Task) bool {
	c.overflowMu.Lock()
	c.overflowBuf = append(c.overflowBuf[:0:0], tasks...)
	cb := c.refuseCallback
	c.overflowMu.Unlock()

	c.metrics.recordOverflow(c.poolID, c.kind, len(tasks))

	if cb != nil {
		cb()
		return true
	}
	return false
}

// pullOverflow returns and clears the current overflow buffer. The
// buffer is only ever cleared again at the next overflow event, never
// implicitly after a callback returns, so a callback has until the next
// admission failure to call this.
func (c *fixedController) pullOverflow() []Task {
	c.overflowMu.Lock()
	defer c.overflowMu.Unlock()
	buf := c.overflowBuf
	c.overflowBuf = nil
	return buf
}

// waitForTasks implements the two-pass quiescence wait: set every
// worker's waiting flag, then wait for every worker's task count to
// reach zero, twice over. The second pass exists because the
// donation/steal protocol can move a task from worker A to worker B
// after B was observed empty in the first pass; repeating the whole
// scan covers that window. Conservative but correct; a single pass has
// not been shown sufficient against the donation window, so two stay.
func (c *fixedController) waitForTasks() {
	for pass := 0; pass < 2; pass++ {
		for _, w := range c.workers {
			w.base().setWaiting(true)
		}
		for _, w := range c.workers {
			w.base().waitUntilDone()
		}
	}
	for _, w := range c.workers {
		w.base().setWaiting(false)
	}
}

func (c *fixedController) tasksRemaining() int64 {
	var total int64
	for _, w := range c.workers {
		total += w.base().count()
	}
	return total
}

func (c *fixedController) workerCount() int {
	return len(c.workers)
}
