package workerpool

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsNilIsNoOp(t *testing.T) {
	var m *Metrics
	m.recordSubmit("p", "steady", 1)
	m.recordCompleted("p", "steady")
	m.recordOverflow("p", "steady", 1)
	m.setWorkerLoad("p", "steady", "0", 1)
	m.setRunning("p", "dynamic", 1)
	m.setExpected("p", "dynamic", 1)
}

func TestMetricsRecordsLabeledSamples(t *testing.T) {
	m := NewMetrics("test")
	reg := prometheus.NewRegistry()
	for _, c := range m.Collectors() {
		reg.MustRegister(c)
	}

	m.recordSubmit("p1", "steady", 3)
	m.recordCompleted("p1", "steady")
	m.recordOverflow("p1", "steady", 2)
	m.setWorkerLoad("p1", "steady", "0", 5)
	m.setRunning("p2", "dynamic", 4)
	m.setExpected("p2", "dynamic", 6)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.submitted.WithLabelValues("p1", "steady")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.completed.WithLabelValues("p1", "steady")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.overflowed.WithLabelValues("p1", "steady")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.workerLoad.WithLabelValues("p1", "steady", "0")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.running.WithLabelValues("p2", "dynamic")))
	assert.Equal(t, 6.0, testutil.ToFloat64(m.expected.WithLabelValues("p2", "dynamic")))
}

func TestSteadyPoolReportsMetrics(t *testing.T) {
	m := NewMetrics("")
	p, err := NewSteadyPool(2, WithSteadyMetrics(m))
	require.NoError(t, err)
	defer p.Close()

	const n = 5
	for i := 0; i < n; i++ {
		require.NoError(t, p.Submit(func() error { return nil }))
	}
	p.WaitForTasks()

	assert.Equal(t, float64(n), testutil.ToFloat64(m.submitted.WithLabelValues(p.ID(), "steady")))
	// The completion counter is bumped just after the per-worker task
	// count, so it can trail WaitForTasks by an instant.
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(m.completed.WithLabelValues(p.ID(), "steady")) == float64(n)
	}, assertionWindow, assertionTick)
}

func TestDynamicPoolReportsWorkerGauges(t *testing.T) {
	m := NewMetrics("")
	p, err := NewDynamicPool(3, WithDynamicMetrics(m))
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.expected.WithLabelValues(p.ID(), "dynamic")))
	require.NoError(t, p.Remove(1))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.expected.WithLabelValues(p.ID(), "dynamic")))
}
