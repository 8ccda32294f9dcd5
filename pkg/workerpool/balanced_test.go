package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalancedPoolMinimalSubmitAndClose(t *testing.T) {
	p, err := NewBalancedPool(2)
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

// TestBalancedPoolDonationAcrossWorkers piles the entire backlog onto
// worker 0 directly, bypassing the cursor, so only donation can move
// work anywhere else. The tasks gate on four of them executing at once,
// which a single worker cannot do: the gate only closes if workers 1-3
// each picked up at least one donated task. The gate is checked before
// WaitForTasks, since an idle worker flagged for quiescence signals and
// yields instead of taking a donation.
func TestBalancedPoolDonationAcrossWorkers(t *testing.T) {
	p, err := NewBalancedPool(4)
	require.NoError(t, err)
	defer p.Close()
	require.NoError(t, p.EnableSteal(3))

	const n = 64
	var completed int64
	var inside int32
	gate := make(chan struct{})
	var once sync.Once

	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = NewTask(func() error {
			if atomic.AddInt32(&inside, 1) >= 4 {
				once.Do(func() { close(gate) })
			}
			<-gate
			atomic.AddInt64(&completed, 1)
			return nil
		})
	}
	p.workers[0].enqueueBatch(tasks)
	assertEventuallyClosed(t, gate)

	done := make(chan struct{})
	go func() {
		p.WaitForTasks()
		close(done)
	}()
	assertEventuallyClosed(t, done)
	assert.Equal(t, int64(n), atomic.LoadInt64(&completed))
}

func TestBalancedPoolSubmitBatchCounts(t *testing.T) {
	p, err := NewBalancedPool(4)
	require.NoError(t, err)
	defer p.Close()

	const n = 100_000
	var completed int64
	fns := make([]func() error, n)
	for i := range fns {
		fns[i] = func() error {
			atomic.AddInt64(&completed, 1)
			return nil
		}
	}

	require.NoError(t, p.SubmitBatch(fns))
	p.WaitForTasks()

	assert.Equal(t, int64(n), atomic.LoadInt64(&completed))
	assert.Equal(t, int64(0), p.TasksRemaining())
}

func TestBalancedPoolOverflow(t *testing.T) {
	p, err := NewBalancedPool(1, WithBalancedCapacity(1))
	require.NoError(t, err)
	defer p.Close()

	block := make(chan struct{})
	require.NoError(t, p.Submit(func() error {
		<-block
		return nil
	}))
	assert.Eventually(t, func() bool { return p.TasksRemaining() == 1 }, assertionWindow, assertionTick)

	err = p.Submit(func() error { return nil })
	assert.ErrorIs(t, err, ErrOverflow)

	close(block)
	p.WaitForTasks()
}

func TestBalancedPoolInvalidArgument(t *testing.T) {
	_, err := NewBalancedPool(-2)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestBalancedPoolSubmitAfterCloseFails(t *testing.T) {
	p, err := NewBalancedPool(1)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	err = p.Submit(func() error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}
