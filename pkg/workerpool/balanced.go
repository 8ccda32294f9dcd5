package workerpool

import (
	"fmt"
	"runtime"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/noisefs-labs/workerpool/pkg/wplog"
)

// balancedWorker is the donate-variant worker behind BalancedPool: a
// single mutex-guarded queue plus one in-flight slot. Unlike the steady
// pool's whole-queue swap, an idle peer here takes exactly one task at a
// time from a busy worker, trading a slightly larger critical section
// for finer-grained balance under uneven task sizes.
type balancedWorker struct {
	workerBase

	mu       sync.Mutex
	queue    []Task
	inFlight Task
}

func newBalancedWorker() *balancedWorker {
	return &balancedWorker{workerBase: newWorkerBase()}
}

func (w *balancedWorker) base() *workerBase { return &w.workerBase }

func (w *balancedWorker) enqueueOne(t Task) {
	// Count before queue, same discipline as the steady worker: the sum
	// of counts must only ever read high during a transfer, never low.
	w.addCount(1)
	w.mu.Lock()
	w.queue = append(w.queue, t)
	w.mu.Unlock()
}

func (w *balancedWorker) enqueueBatch(tasks []Task) {
	w.addCount(int64(len(tasks)))
	w.mu.Lock()
	w.queue = append(w.queue, tasks...)
	w.mu.Unlock()
}

// tryDonate moves exactly one task from this worker's queue into
// target's queue, if this worker's lock is free and its queue is
// non-empty. Unlike steady's tryHandOff this never touches the whole
// queue, so a busy worker keeps making progress on its own backlog
// while donating.
func (w *balancedWorker) tryDonate(target *balancedWorker) bool {
	if !w.mu.TryLock() {
		return false
	}
	if len(w.queue) == 0 {
		w.mu.Unlock()
		return false
	}
	t := w.queue[0]
	w.queue = w.queue[1:]
	w.mu.Unlock()

	// Receiver first, then donor, so outstanding work is never
	// understated mid-donation.
	target.enqueueOne(t)
	w.addCount(-1)
	return true
}

// tryLoad pulls one task out of the queue into the in-flight slot,
// reporting whether it found one.
func (w *balancedWorker) tryLoad() bool {
	w.mu.Lock()
	if len(w.queue) == 0 {
		w.mu.Unlock()
		return false
	}
	w.inFlight = w.queue[0]
	w.queue = w.queue[1:]
	w.mu.Unlock()
	return true
}

// runInFlight takes the task out of the in-flight slot, executes it,
// and decrements the outstanding count once it has run.
func (w *balancedWorker) runInFlight(onDone func()) {
	t := w.inFlight.Take()
	_ = t.Invoke()
	w.addCount(-1)
	if onDone != nil {
		onDone()
	}
}

// BalancedPool is the fixed-worker-count, single-task-donation pool
// variant: best for mixed or bursty task sizes where a whole-queue swap
// would over-correct.
type BalancedPool struct {
	id      string
	workers []*balancedWorker
	ctl     *fixedController
	logger  *wplog.FieldLogger
	metrics *Metrics
	wg      doneGroup
}

// BalancedOption configures NewBalancedPool.
type BalancedOption func(*balancedConfig)

type balancedConfig struct {
	capacity int
	logger   *wplog.Logger
	metrics  *Metrics
}

// WithBalancedCapacity sets the pool's total task capacity; 0 (the
// default) means unbounded.
func WithBalancedCapacity(capacity int) BalancedOption {
	return func(c *balancedConfig) { c.capacity = capacity }
}

// WithBalancedLogger attaches a logger; nil (the default) discards all
// pool diagnostics.
func WithBalancedLogger(l *wplog.Logger) BalancedOption {
	return func(c *balancedConfig) { c.logger = l }
}

// WithBalancedMetrics attaches a Prometheus collector.
func WithBalancedMetrics(m *Metrics) BalancedOption {
	return func(c *balancedConfig) { c.metrics = m }
}

// NewBalancedPool constructs and starts a BalancedPool with workerCount
// workers (0 uses runtime.GOMAXPROCS(0), falling back to 1).
func NewBalancedPool(workerCount int, opts ...BalancedOption) (*BalancedPool, error) {
	cfg := balancedConfig{}
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
	log := logger.WithComponent("workerpool.balanced").WithField("pool_id", id)

	workers := make([]*balancedWorker, workerCount)
	fixedWorkers := make([]fixedWorker, workerCount)
	for i := range workers {
		workers[i] = newBalancedWorker()
		fixedWorkers[i] = workers[i]
	}

	p := &BalancedPool{
		id:      id,
		workers: workers,
		ctl:     newFixedController(fixedWorkers, cfg.capacity, id, "balanced", cfg.metrics),
		logger:  log,
		metrics: cfg.metrics,
	}

	p.wg.add(workerCount)
	for i := range workers {
		go p.loop(i)
	}

	log.Info(fmt.Sprintf("balanced pool started with %d workers", workerCount))
	return p, nil
}

// ID returns the pool's generated identity, used to tag its log lines
// and metrics samples.
func (p *BalancedPool) ID() string { return p.id }

func (p *BalancedPool) loop(index int) {
	defer p.wg.done()
	self := p.workers[index]
	n := len(p.workers)

	for !p.ctl.isStopping() {
		if self.tryLoad() {
			self.runInFlight(func() { p.metrics.recordCompleted(p.id, "balanced") })
			continue
		}

		if self.count() == 0 {
			if self.isWaiting() {
				self.notifyTaskDone()
				runtime.Gosched()
				continue
			}
			if enabled, max := p.ctl.stealInfo(); enabled {
				donated := false
				i := index
				for j := 0; j < max; j++ {
					i = (i + 1) % n
					if p.workers[i].tryDonate(self) {
						donated = true
						break
					}
				}
				if donated {
					continue
				}
			}
			runtime.Gosched()
		}
	}
}

// submitTask implements the submitter interface used by SubmitFor.
func (p *BalancedPool) submitTask(t Task) (bool, error) {
	admitted, _, err := p.submitOne(t)
	return admitted, err
}

func (p *BalancedPool) submitOne(t Task) (admitted, recovered bool, err error) {
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
	p.metrics.recordSubmit(p.id, "balanced", 1)
	p.metrics.setWorkerLoad(p.id, "balanced", strconv.Itoa(idx), p.workers[idx].count())
	return true, false, nil
}

// Submit enqueues fn for asynchronous execution. On admission failure
// the rejected task lands in the overflow buffer; if a refuse-callback
// is installed it recovers the task and Submit returns nil, otherwise
// Submit returns ErrOverflow. Submitting to a closed pool returns
// ErrClosed.
func (p *BalancedPool) Submit(fn func() error) error {
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
// between items, matching SteadyPool's batch rationale: an unbounded
// pool puts the whole batch on that worker, a bounded pool fills it and
// then the next worker admission finds with room.
func (p *BalancedPool) SubmitBatch(fns []func() error) error {
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
		p.metrics.recordSubmit(p.id, "balanced", len(tasks))
		return nil
	}

	p.ctl.moveCursorToLeastBusyLocked()
	for i := range tasks {
		if !p.ctl.admitLocked(1) {
			rest := tasks[i:]
			p.ctl.mu.Unlock()
			recovered := p.ctl.handleOverflow(rest...)
			p.metrics.recordSubmit(p.id, "balanced", i)
			if recovered {
				return nil
			}
			return ErrOverflow
		}
		idx := p.ctl.cursor
		p.workers[idx].enqueueOne(tasks[i])
	}
	p.ctl.mu.Unlock()
	p.metrics.recordSubmit(p.id, "balanced", len(tasks))
	return nil
}

// EnableSteal turns on donation among idle workers with the given steal
// budget (0 picks clamp(workerCount/4, 1, 8)). It rejects a budget that
// is not strictly less than the worker count.
func (p *BalancedPool) EnableSteal(max int) error { return p.ctl.enableSteal(max) }

// DisableSteal turns off donation.
func (p *BalancedPool) DisableSteal() { p.ctl.disableSteal() }

// SetRefuseCallback installs fn to be invoked synchronously on the
// submitting goroutine whenever admission fails. fn is expected to drain
// the overflow buffer via PullOverflow.
func (p *BalancedPool) SetRefuseCallback(fn func()) error { return p.ctl.setRefuseCallback(fn) }

// PullOverflow returns and clears the current overflow buffer.
func (p *BalancedPool) PullOverflow() []Task { return p.ctl.pullOverflow() }

// WaitForTasks blocks until every worker's outstanding task count is
// zero, using the two-pass quiescence protocol shared with SteadyPool.
func (p *BalancedPool) WaitForTasks() { p.ctl.waitForTasks() }

// TasksRemaining returns the sum of outstanding tasks across workers.
func (p *BalancedPool) TasksRemaining() int64 { return p.ctl.tasksRemaining() }

// WorkerCount returns the number of workers in the pool.
func (p *BalancedPool) WorkerCount() int { return p.ctl.workerCount() }

// Close stops accepting new submissions, discards any tasks still
// queued, and waits for every worker goroutine to exit. Close is
// idempotent.
func (p *BalancedPool) Close() error {
	if p.ctl.isStopping() {
		return nil
	}
	p.ctl.markStopping()
	p.wg.wait()
	p.logger.Info("closed")
	return nil
}
