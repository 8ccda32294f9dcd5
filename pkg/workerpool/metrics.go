package workerpool

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is an optional Prometheus collector a pool reports its
// dispatch counters into. Passing nil (the default) makes every
// recording call a no-op checked once per call site, avoiding the
// allocation an interface-shaped no-op implementation would cost on
// every task.
//
// Metrics is not itself a prometheus.Collector: register the collectors
// returned by Collectors with a prometheus.Registerer once and share the
// Metrics across as many pools as convenient; each pool's samples are
// distinguished by the pool_id label, taken from the pool's own identity
// (see SteadyPool.ID, BalancedPool.ID and DynamicPool.ID).
type Metrics struct {
	submitted  *prometheus.CounterVec
	completed  *prometheus.CounterVec
	overflowed *prometheus.CounterVec
	workerLoad *prometheus.GaugeVec
	running    *prometheus.GaugeVec
	expected   *prometheus.GaugeVec
}

// NewMetrics builds a Metrics collector with the given namespace (for
// example "myapp"); pass "" to use the bare "workerpool" subsystem
// names. The caller must register every collector from Collectors with
// a prometheus.Registerer (e.g. prometheus.DefaultRegisterer) before
// scraping.
func NewMetrics(namespace string) *Metrics {
	labels := []string{"pool_id", "pool_kind"}
	return &Metrics{
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workerpool",
			Name:      "tasks_submitted_total",
			Help:      "Tasks accepted by Submit/SubmitFor/SubmitBatch.",
		}, labels),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workerpool",
			Name:      "tasks_completed_total",
			Help:      "Tasks that finished executing, successfully or not.",
		}, labels),
		overflowed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workerpool",
			Name:      "tasks_overflowed_total",
			Help:      "Tasks rejected by admission control.",
		}, labels),
		workerLoad: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workerpool",
			Name:      "worker_task_count",
			Help:      "Tasks currently owned (queued + in flight) by a worker.",
		}, []string{"pool_id", "pool_kind", "worker"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workerpool",
			Name:      "running_workers",
			Help:      "Dynamic pool workers currently alive.",
		}, labels),
		expected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workerpool",
			Name:      "expected_workers",
			Help:      "Dynamic pool workers the controller expects to converge to.",
		}, labels),
	}
}

// Collectors returns every metric so the caller can register them, e.g.
// for _, c := range m.Collectors() { registerer.MustRegister(c) }
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.submitted, m.completed, m.overflowed, m.workerLoad, m.running, m.expected}
}

func (m *Metrics) recordSubmit(poolID, kind string, n int) {
	if m == nil {
		return
	}
	m.submitted.WithLabelValues(poolID, kind).Add(float64(n))
}

func (m *Metrics) recordCompleted(poolID, kind string) {
	if m == nil {
		return
	}
	m.completed.WithLabelValues(poolID, kind).Inc()
}

func (m *Metrics) recordOverflow(poolID, kind string, n int) {
	if m == nil {
		return
	}
	m.overflowed.WithLabelValues(poolID, kind).Add(float64(n))
}

func (m *Metrics) setWorkerLoad(poolID, kind, worker string, v int64) {
	if m == nil {
		return
	}
	m.workerLoad.WithLabelValues(poolID, kind, worker).Set(float64(v))
}

func (m *Metrics) setRunning(poolID, kind string, v int) {
	if m == nil {
		return
	}
	m.running.WithLabelValues(poolID, kind).Set(float64(v))
}

func (m *Metrics) setExpected(poolID, kind string, v int) {
	if m == nil {
		return
	}
	m.expected.WithLabelValues(poolID, kind).Set(float64(v))
}
