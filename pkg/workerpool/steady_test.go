package workerpool

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSteadyPoolMinimalSubmitAndClose(t *testing.T) {
	p, err := NewSteadyPool(2)
	require.NoError(t, err)

	var ran int32
	require.NoError(t, p.Submit(func() error {
		atomic.AddInt32(&ran, 1)
		return nil
	}))

	p.WaitForTasks()
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
	assert.NoError(t, p.Close())
}

func TestSteadyPoolSubmitBatchCounts(t *testing.T) {
	p, err := NewSteadyPool(4)
	require.NoError(t, err)
	defer p.Close()

	const n = 100_000
	const batch = 10
	var completed int64
	fns := make([]func() error, batch)
	for i := range fns {
		fns[i] = func() error {
			atomic.AddInt64(&completed, 1)
			return nil
		}
	}

	for i := 0; i < n/batch; i++ {
		require.NoError(t, p.SubmitBatch(fns))
	}
	p.WaitForTasks()

	assert.Equal(t, int64(n), atomic.LoadInt64(&completed))
	assert.Equal(t, int64(0), p.TasksRemaining())
}

// TestSteadyPoolOverflowRehomesIntoDynamicPool wires a bounded steady
// pool in front of a dynamic pool acting as its overflow tier: the
// refuse callback drains the overflow buffer into the dynamic pool, so
// every submission lands somewhere and Submit itself never errors.
func TestSteadyPoolOverflowRehomesIntoDynamicPool(t *testing.T) {
	cache, err := NewDynamicPool(2)
	require.NoError(t, err)
	defer cache.Close()

	primary, err := NewSteadyPool(4, WithSteadyCapacity(40))
	require.NoError(t, err)
	defer primary.Close()

	var overflowed int32
	require.NoError(t, primary.SetRefuseCallback(func() {
		for _, rejected := range primary.PullOverflow() {
			atomic.AddInt32(&overflowed, 1)
			task := rejected
			require.NoError(t, cache.Submit(func() error {
				return task.Invoke()
			}))
		}
	}))

	// Gate every task so the 40-slot capacity stays full for the whole
	// submission loop instead of draining underneath it.
	gate := make(chan struct{})
	var ran int32
	for i := 0; i < 43; i++ {
		require.NoError(t, primary.Submit(func() error {
			<-gate
			atomic.AddInt32(&ran, 1)
			return nil
		}), "the refuse callback rehomes rejected tasks, so Submit reports success")
	}

	close(gate)
	primary.WaitForTasks()
	cache.WaitForTasks()

	assert.Equal(t, int32(43), atomic.LoadInt32(&ran))
	assert.Equal(t, int32(3), atomic.LoadInt32(&overflowed))
}

func TestSteadyPoolBatchAdmissionBoundary(t *testing.T) {
	p, err := NewSteadyPool(1, WithSteadyCapacity(3))
	require.NoError(t, err)
	defer p.Close()

	// Pin the single worker's count at 1 with a blocked task so the batch
	// admission walk below sees a stable starting count instead of racing
	// the worker draining concurrently.
	block := make(chan struct{})
	require.NoError(t, p.Submit(func() error {
		<-block
		return nil
	}))
	assert.Eventually(t, func() bool { return p.TasksRemaining() == 1 }, assertionWindow, assertionTick)

	fns := make([]func() error, 2)
	for i := range fns {
		fns[i] = func() error { return nil }
	}
	require.NoError(t, p.SubmitBatch(fns), "2 more tasks fit exactly within capacity 3")
	assert.Equal(t, int64(3), p.TasksRemaining())

	overflowFns := make([]func() error, 1)
	overflowFns[0] = func() error { return nil }
	err = p.SubmitBatch(overflowFns)
	assert.ErrorIs(t, err, ErrOverflow, "a 4th task exceeds capacity 3 with no refuse callback installed")

	close(block)
	p.WaitForTasks()
}

func TestSteadyPoolSubmitAfterCloseFails(t *testing.T) {
	p, err := NewSteadyPool(1)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	err = p.Submit(func() error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSteadyPoolInvalidArgument(t *testing.T) {
	_, err := NewSteadyPool(-1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSteadyPoolEnableStealRejectsBudget(t *testing.T) {
	p, err := NewSteadyPool(2)
	require.NoError(t, err)
	defer p.Close()

	assert.Error(t, p.EnableSteal(2))
	assert.NoError(t, p.EnableSteal(1))
	p.DisableSteal()
}
