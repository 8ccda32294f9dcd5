package workerpool

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/google/uuid"

	"github.com/noisefs-labs/workerpool/pkg/wplog"
)

// steadyWorker is the swap-variant worker behind SteadyPool: a public
// queue producers and peers reach, guarded by a spin lock, and a private
// buffer queue the worker alone drains. Swapping the two queues'
// contents is O(1), so producer/peer contention is confined to a tiny
// critical section instead of the whole drain.
type steadyWorker struct {
	workerBase

	lock    spinLock
	publicQ []Task
	bufferQ []Task
}

func newSteadyWorker() *steadyWorker {
	return &steadyWorker{workerBase: newWorkerBase()}
}

func (w *steadyWorker) base() *workerBase { return &w.workerBase }

func (w *steadyWorker) enqueueOne(t Task) {
	// Count before queue: the worker decrements only after executing, so
	// leading with the increment keeps the count an upper bound on tasks
	// actually owned and the pool-wide sum can never dip through zero
	// while work is still in flight.
	w.addCount(1)
	g := newSpinGuard(&w.lock)
	w.publicQ = append(w.publicQ, t)
	g.release()
}

func (w *steadyWorker) enqueueBatch(tasks []Task) {
	w.addCount(int64(len(tasks)))
	g := newSpinGuard(&w.lock)
	w.publicQ = append(w.publicQ, tasks...)
	g.release()
}

// tryHandOff swaps this worker's entire public queue into target's
// buffer queue if the lock is free and the public queue is non-empty.
// This is the steady pool's steal primitive: the idle worker (target)
// never reaches into a peer's queue itself, the peer gives it up under
// its own lock.
func (w *steadyWorker) tryHandOff(target *steadyWorker) bool {
	if !w.lock.tryLock() {
		return false
	}
	if len(w.publicQ) == 0 {
		w.lock.unlock()
		return false
	}
	n := int64(len(w.publicQ))
	target.bufferQ = append(target.bufferQ, w.publicQ...)
	w.publicQ = w.publicQ[:0]
	w.lock.unlock()

	// Credit the receiver before debiting the donor, so the pool-wide
	// count never understates outstanding work mid-transfer. The
	// quiescence wait relies on the sum only ever reading high, never
	// low, during a hand-off.
	target.addCount(n)
	w.addCount(-n)
	return true
}

// trySwapIn unconditionally exchanges publicQ and bufferQ under the spin
// lock and reports whether bufferQ now has work.
func (w *steadyWorker) trySwapIn() bool {
	g := newSpinGuard(&w.lock)
	w.publicQ, w.bufferQ = w.bufferQ, w.publicQ
	g.release()
	return len(w.bufferQ) > 0
}

// runBuffer drains bufferQ fully: once swapped in, the worker commits to
// executing everything it found before checking any flag again.
func (w *steadyWorker) runBuffer(onDone func()) {
	for len(w.bufferQ) > 0 {
		t := w.bufferQ[0].Take()
		w.bufferQ = w.bufferQ[1:]
		_ = t.Invoke()
		w.addCount(-1)
		if onDone != nil {
			onDone()
		}
	}
	w.bufferQ = w.bufferQ[:0]
}

// SteadyPool is the fixed-worker-count, swap-queue pool variant: best
// for steady, high-volume streams of short, uniform tasks.
type SteadyPool struct {
	id      string
	workers []*steadyWorker
	ctl     *fixedController
	logger  *wplog.FieldLogger
	metrics *Metrics
	wg      doneGroup
}

// SteadyOption configures NewSteadyPool.
type SteadyOption func(*steadyConfig)

type steadyConfig struct {
	capacity int
	logger   *wplog.Logger
	metrics  *Metrics
}

// WithSteadyCapacity sets the pool's total task capacity; 0 (the
// default) means unbounded. The effective per-worker capacity is
// max(1, capacity/workerCount).
func WithSteadyCapacity(capacity int) SteadyOption {
	return func(c *steadyConfig) { c.capacity = capacity }
}

// WithSteadyLogger attaches a logger; nil (the default) discards all
// pool diagnostics.
func WithSteadyLogger(l *wplog.Logger) SteadyOption {
	return func(c *steadyConfig) { c.logger = l }
}

// WithSteadyMetrics attaches a Prometheus collector.
func WithSteadyMetrics(m *Metrics) SteadyOption {
	return func(c *steadyConfig) { c.metrics = m }
}

// NewSteadyPool constructs and starts a SteadyPool with workerCount
// workers (0 uses runtime.GOMAXPROCS(0), falling back to 1).
func NewSteadyPool(workerCount int, opts ...SteadyOption) (*SteadyPool, error) {
	cfg := steadyConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	var violations []error
	if workerCount < 0 {
		violations = append(violations, invalidArgument("worker count %d must be >= 0", workerCount))
	}
	if cfg.capacity < 0 {
		violations = append(violations, invalidArgument("capacity %d must be >= 0", cfg.capacity))
	}
	if err := collectValidation(violations...); err != nil {
		return nil, err
	}

	if workerCount == 0 {
		workerCount = runtime.GOMAXPROCS(0)
		if workerCount < 1 {
			workerCount = 1
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = wplog.Discard()
	}

	id := uuid.NewString()
	log := logger.WithComponent("workerpool.steady").WithField("pool_id", id)

	workers := make([]*steadyWorker, workerCount)
	fixedWorkers := make([]fixedWorker, workerCount)
	for i := range workers {
		workers[i] = newSteadyWorker()
		fixedWorkers[i] = workers[i]
	}

	p := &SteadyPool{
		id:      id,
		workers: workers,
		ctl:     newFixedController(fixedWorkers, cfg.capacity, id, "steady", cfg.metrics),
		logger:  log,
		metrics: cfg.metrics,
	}

	p.wg.add(workerCount)
	for i := range workers {
		go p.loop(i)
	}

	log.Info(fmt.Sprintf("steady pool started with %d workers", workerCount))
	return p, nil
}

// ID returns the pool's generated identity, used to tag its log lines
// and metrics samples.
func (p *SteadyPool) ID() string { return p.id }

func (p *SteadyPool) loop(index int) {
	defer p.wg.done()
	self := p.workers[index]
	n := len(p.workers)

	for !p.ctl.isStopping() {
		if self.count() == 0 {
			if self.isWaiting() {
				self.notifyTaskDone()
				runtime.Gosched()
				continue
			}
			if enabled, max := p.ctl.stealInfo(); enabled {
				stole := false
				i := index
				for j := 0; j < max; j++ {
					i = (i + 1) % n
					if p.workers[i].tryHandOff(self) {
						self.runBuffer(func() { p.metrics.recordCompleted(p.id, "steady") })
						stole = true
						break
					}
				}
				if stole {
					if self.count() != 0 || self.isWaiting() {
						continue
					}
				}
			}
			runtime.Gosched()
		} else {
			if self.trySwapIn() {
				self.runBuffer(func() { p.metrics.recordCompleted(p.id, "steady") })
			}
		}
	}
}

// submitTask implements the submitter interface used by SubmitFor.
func (p *SteadyPool) submitTask(t Task) (bool, error) {
	admitted, _, err := p.submitOne(t)
	return admitted, err
}

func (p *SteadyPool) submitOne(t Task) (admitted, recovered bool, err error) {
	if p.ctl.isStopping() {
		return false, false, ErrClosed
	}
	p.ctl.mu.Lock()
	p.ctl.moveCursorToLeastBusyLocked()
	ok := p.ctl.admitLocked(1)
	idx := p.ctl.cursor
	if ok {
		// Enqueue before dropping ctl.mu so a concurrent producer can't
		// admit against a count that doesn't yet include this task and
		// push the worker past its capacity.
		p.workers[idx].enqueueOne(t)
	}
	p.ctl.mu.Unlock()

	if !ok {
		return false, p.ctl.handleOverflow(t), nil
	}
	p.metrics.recordSubmit(p.id, "steady", 1)
	p.metrics.setWorkerLoad(p.id, "steady", strconv.Itoa(idx), p.workers[idx].count())
	return true, false, nil
}

// Submit enqueues fn for asynchronous execution. On admission failure
// the rejected task lands in the overflow buffer; if a refuse-callback
// is installed it recovers the task and Submit returns nil, otherwise
// Submit returns ErrOverflow. Submitting to a closed pool returns
// ErrClosed.
func (p *SteadyPool) Submit(fn func() error) error {
	admitted, recovered, err := p.submitOne(NewTask(fn))
	if err != nil {
		return err
	}
	if !admitted && !recovered {
		return ErrOverflow
	}
	return nil
}

// SubmitBatch enqueues fns as a batch. The cursor is moved to the
// least-busy worker once at the start of the batch and not re-searched
// between items: an unbounded pool puts the whole batch on that worker,
// a bounded pool fills it and then the next worker admission finds with
// room. Bounded batch cost is preferred over perfect per-item balance.
func (p *SteadyPool) SubmitBatch(fns []func() error) error {
	if len(fns) == 0 {
		return nil
	}
	if p.ctl.isStopping() {
		return ErrClosed
	}
	tasks := make([]Task, len(fns))
	for i, fn := range fns {
		tasks[i] = NewTask(fn)
	}

	p.ctl.mu.Lock()
	if p.ctl.perWorkerCap == 0 {
		p.ctl.moveCursorToLeastBusyLocked()
		idx := p.ctl.cursor
		p.ctl.mu.Unlock()
		p.workers[idx].enqueueBatch(tasks)
		p.metrics.recordSubmit(p.id, "steady", len(tasks))
		return nil
	}

	p.ctl.moveCursorToLeastBusyLocked()
	for i := range tasks {
		if !p.ctl.admitLocked(1) {
			rest := tasks[i:]
			p.ctl.mu.Unlock()
			recovered := p.ctl.handleOverflow(rest...)
			p.metrics.recordSubmit(p.id, "steady", i)
			if recovered {
				return nil
			}
			return ErrOverflow
		}
		idx := p.ctl.cursor
		p.workers[idx].enqueueOne(tasks[i])
	}
	p.ctl.mu.Unlock()
	p.metrics.recordSubmit(p.id, "steady", len(tasks))
	return nil
}

// EnableSteal turns on donation among idle workers with the given steal
// budget (0 picks clamp(workerCount/4, 1, 8)). It rejects a budget that
// is not strictly less than the worker count.
func (p *SteadyPool) EnableSteal(max int) error { return p.ctl.enableSteal(max) }

// DisableSteal turns off donation.
func (p *SteadyPool) DisableSteal() { p.ctl.disableSteal() }

// SetRefuseCallback installs fn to be invoked synchronously on the
// submitting goroutine whenever admission fails. fn is expected to drain
// the overflow buffer via PullOverflow.
func (p *SteadyPool) SetRefuseCallback(fn func()) error { return p.ctl.setRefuseCallback(fn) }

// PullOverflow returns and clears the current overflow buffer.
func (p *SteadyPool) PullOverflow() []Task { return p.ctl.pullOverflow() }

// WaitForTasks blocks until every worker's outstanding task count is
// zero, using the two-pass quiescence protocol described on
// fixedController.waitForTasks.
func (p *SteadyPool) WaitForTasks() { p.ctl.waitForTasks() }

// TasksRemaining returns the sum of outstanding tasks across workers.
func (p *SteadyPool) TasksRemaining() int64 { return p.ctl.tasksRemaining() }

// WorkerCount returns the number of workers in the pool.
func (p *SteadyPool) WorkerCount() int { return p.ctl.workerCount() }

// Close stops accepting new submissions, discards any tasks still
// queued, and waits for every worker goroutine to exit. Close is
// idempotent.
func (p *SteadyPool) Close() error {
	if p.ctl.isStopping() {
		return nil
	}
	p.ctl.markStopping()
	p.wg.wait()
	p.logger.Info("closed")
	return nil
}
