package workerpool

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/noisefs-labs/workerpool/pkg/wplog"
)

// DynamicPool is the resizable pool variant: a single shared queue
// guarded by one mutex, with workers parked on a condition variable
// instead of spinning when idle. Unlike SteadyPool and
// BalancedPool it has no fixed worker count and no steal/donate
// protocol; rebalancing is implicit since every worker pulls from the
// same queue. Best for bursty or low-duty-cycle workloads where paying
// for idle spinning workers isn't worth it.
type DynamicPool struct {
	id      string
	logger  *wplog.FieldLogger
	metrics *Metrics

	mu           sync.Mutex
	queue        []Task
	stopping     bool
	expectCount  int
	runningCount int
	shrinkCredit int

	awakeCond  *sync.Cond
	doneCond   *sync.Cond
	threadCond *sync.Cond

	totalTasks int64 // atomic: queued + in-flight, for WaitForTasks

	submittedTotal int64 // atomic
	completedTotal int64 // atomic
}

// DynamicOption configures NewDynamicPool.
type DynamicOption func(*dynamicConfig)

type dynamicConfig struct {
	logger  *wplog.Logger
	metrics *Metrics
}

// WithDynamicLogger attaches a logger; nil (the default) discards all
// pool diagnostics.
func WithDynamicLogger(l *wplog.Logger) DynamicOption {
	return func(c *dynamicConfig) { c.logger = l }
}

// WithDynamicMetrics attaches a Prometheus collector.
func WithDynamicMetrics(m *Metrics) DynamicOption {
	return func(c *dynamicConfig) { c.metrics = m }
}

// NewDynamicPool constructs and starts a DynamicPool with initialWorkers
// running workers (0 is a valid starting point: the pool can be grown
// later with Add or ResizeTo).
func NewDynamicPool(initialWorkers int, opts ...DynamicOption) (*DynamicPool, error) {
	cfg := dynamicConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	if initialWorkers < 0 {
		return nil, invalidArgument("initial worker count %d must be >= 0", initialWorkers)
	}

	logger := cfg.logger
	if logger == nil {
		logger = wplog.Discard()
	}

	id := uuid.NewString()
	log := logger.WithComponent("workerpool.dynamic").WithField("pool_id", id)

	p := &DynamicPool{
		id:      id,
		logger:  log,
		metrics: cfg.metrics,
	}
	p.awakeCond = sync.NewCond(&p.mu)
	p.doneCond = sync.NewCond(&p.mu)
	p.threadCond = sync.NewCond(&p.mu)

	if initialWorkers > 0 {
		p.Add(initialWorkers)
	}

	log.Info(fmt.Sprintf("dynamic pool started with %d workers", initialWorkers))
	return p, nil
}

// ID returns the pool's generated identity, used to tag its log lines
// and metrics samples.
func (p *DynamicPool) ID() string { return p.id }

// Add grows the pool by n workers, spawning n goroutines immediately.
// It is a no-op for n <= 0 and for a closed pool (workers added after
// Close would retire on their first wakeup anyway, but counting them
// into expectCount would leave WaitForThreads waiting on workers that
// no longer exist).
func (p *DynamicPool) Add(n int) {
	if n <= 0 {
		return
	}
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return
	}
	p.expectCount += n
	p.runningCount += n
	p.mu.Unlock()

	p.metrics.setExpected(p.id, "dynamic", p.ExpectedCount())
	p.metrics.setRunning(p.id, "dynamic", p.RunningCount())

	for i := 0; i < n; i++ {
		go p.workerLoop()
	}
}

// Remove shrinks the pool by n workers: it grants n units of shrink
// credit, each redeemed by the next worker that wakes idle or finishes
// its current task. It is a no-op for n <= 0 and rejects n greater than
// the expected worker count. Remove never blocks; use WaitForThreads to
// observe convergence.
func (p *DynamicPool) Remove(n int) error {
	if n <= 0 {
		return nil
	}
	p.mu.Lock()
	if n > p.expectCount {
		defer p.mu.Unlock()
		return invalidArgument("remove count %d exceeds expected worker count %d", n, p.expectCount)
	}
	p.shrinkCredit += n
	p.expectCount -= n
	p.mu.Unlock()

	p.metrics.setExpected(p.id, "dynamic", p.ExpectedCount())
	p.awakeCond.Broadcast()
	return nil
}

// ResizeTo grows or shrinks the pool to exactly k expected workers.
func (p *DynamicPool) ResizeTo(k int) error {
	if k < 0 {
		return invalidArgument("target worker count %d must be >= 0", k)
	}
	p.mu.Lock()
	diff := k - p.expectCount
	p.mu.Unlock()

	if diff > 0 {
		p.Add(diff)
		return nil
	}
	if diff < 0 {
		return p.Remove(-diff)
	}
	return nil
}

// workerLoop is a single dynamic worker: park on awakeCond while the
// queue is empty and there is no shrink credit and the pool isn't
// stopping, then either retire (stopping or shrink credit wins the
// tie-break over a pending task) or pop and run one task.
func (p *DynamicPool) workerLoop() {
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && p.shrinkCredit == 0 && !p.stopping {
			p.awakeCond.Wait()
		}

		if p.stopping {
			p.runningCount--
			p.mu.Unlock()
			p.broadcastThread()
			return
		}

		if p.shrinkCredit > 0 {
			p.shrinkCredit--
			p.runningCount--
			p.mu.Unlock()
			p.broadcastThread()
			return
		}

		t := p.queue[0].Take()
		p.queue = p.queue[1:]
		p.mu.Unlock()

		_ = t.Invoke()

		atomic.AddInt64(&p.completedTotal, 1)
		p.metrics.recordCompleted(p.id, "dynamic")
		left := atomic.AddInt64(&p.totalTasks, -1)
		if left == 0 {
			p.broadcastDone()
		}
	}
}

func (p *DynamicPool) broadcastThread() {
	p.mu.Lock()
	p.threadCond.Broadcast()
	p.mu.Unlock()
}

func (p *DynamicPool) broadcastDone() {
	p.mu.Lock()
	p.doneCond.Broadcast()
	p.mu.Unlock()
}

// submitTask implements the submitter interface used by SubmitFor.
func (p *DynamicPool) submitTask(t Task) (bool, error) {
	if err := p.enqueueTask(t); err != nil {
		return false, err
	}
	return true, nil
}

// Submit enqueues fn for asynchronous execution. DynamicPool never
// applies admission control or overflow: the shared queue grows to
// accept whatever is submitted, so Submit only fails with ErrClosed.
func (p *DynamicPool) Submit(fn func() error) error {
	return p.enqueueTask(NewTask(fn))
}

func (p *DynamicPool) enqueueTask(t Task) error {
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return ErrClosed
	}
	// The counter must lead the queue entry: a worker may pop and finish
	// the task the instant the lock drops, and its decrement has to land
	// on a counter that already includes this task, or the zero-crossing
	// wakeup for WaitForTasks is lost.
	atomic.AddInt64(&p.totalTasks, 1)
	p.queue = append(p.queue, t)
	p.mu.Unlock()

	atomic.AddInt64(&p.submittedTotal, 1)
	p.metrics.recordSubmit(p.id, "dynamic", 1)
	p.awakeCond.Signal()
	return nil
}

// SubmitBatch enqueues fns as a batch under a single lock span.
func (p *DynamicPool) SubmitBatch(fns []func() error) error {
	if len(fns) == 0 {
		return nil
	}
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return ErrClosed
	}
	// Counter leads the queue entries, same as enqueueTask.
	atomic.AddInt64(&p.totalTasks, int64(len(fns)))
	for _, fn := range fns {
		p.queue = append(p.queue, NewTask(fn))
	}
	p.mu.Unlock()

	atomic.AddInt64(&p.submittedTotal, int64(len(fns)))
	p.metrics.recordSubmit(p.id, "dynamic", len(fns))
	p.awakeCond.Broadcast()
	return nil
}

// WaitForTasks blocks until the shared queue is empty and no task is in
// flight. A single pass over the totalTasks counter is sufficient here,
// unlike the fixed pools' two-pass wait: dynamic workers never hand
// tasks to one another, so there is no window where a task can move
// from an already-observed-empty worker onto another after the check.
func (p *DynamicPool) WaitForTasks() {
	p.mu.Lock()
	for atomic.LoadInt64(&p.totalTasks) != 0 {
		p.doneCond.Wait()
	}
	p.mu.Unlock()
}

// WaitForThreads blocks until the running worker count has converged to
// the expected count, i.e. every pending Add/Remove has taken effect.
func (p *DynamicPool) WaitForThreads() {
	p.mu.Lock()
	for p.runningCount != p.expectCount {
		p.threadCond.Wait()
	}
	p.mu.Unlock()
}

// JoinRetired blocks until every worker retired by a prior Remove or
// ResizeTo has fully exited. A goroutine has no thread handle to join
// explicitly; RunningCount converging to ExpectedCount is the
// observable equivalent, so JoinRetired shares WaitForThreads'
// predicate. Close calls this implicitly; use it directly to reclaim a
// shrink without closing the pool.
func (p *DynamicPool) JoinRetired() {
	p.WaitForThreads()
}

// RunningCount returns the number of worker goroutines currently alive.
func (p *DynamicPool) RunningCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runningCount
}

// ExpectedCount returns the worker count the pool is converging to.
func (p *DynamicPool) ExpectedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.expectCount
}

// WorkerCount returns the expected worker count, for symmetry with the
// fixed pools. RunningCount may lag it while a resize is converging.
func (p *DynamicPool) WorkerCount() int { return p.ExpectedCount() }

// TasksRemaining returns the number of tasks queued plus in flight.
func (p *DynamicPool) TasksRemaining() int64 {
	return atomic.LoadInt64(&p.totalTasks)
}

// Stats is a point-in-time snapshot of a DynamicPool's load, filling in
// for the visibility the fixed pools get from per-worker task counts.
type Stats struct {
	QueueLength int
	Running     int
	Expected    int
	Submitted   int64
	Completed   int64
}

// Stats returns a snapshot of the pool's current load.
func (p *DynamicPool) Stats() Stats {
	p.mu.Lock()
	s := Stats{
		QueueLength: len(p.queue),
		Running:     p.runningCount,
		Expected:    p.expectCount,
	}
	p.mu.Unlock()
	s.Submitted = atomic.LoadInt64(&p.submittedTotal)
	s.Completed = atomic.LoadInt64(&p.completedTotal)
	return s
}

// Close stops accepting new submissions, discards any tasks still
// queued, and waits for every worker goroutine to retire. Close is
// idempotent.
func (p *DynamicPool) Close() error {
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return nil
	}
	p.stopping = true
	discarded := int64(len(p.queue))
	p.queue = nil
	p.expectCount = 0
	p.mu.Unlock()

	if discarded > 0 {
		left := atomic.AddInt64(&p.totalTasks, -discarded)
		if left == 0 {
			p.broadcastDone()
		}
	}

	p.awakeCond.Broadcast()
	p.JoinRetired()
	p.logger.Info("closed")
	return nil
}
