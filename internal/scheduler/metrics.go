package scheduler

import "github.com/prometheus/client_golang/prometheus"

// Metrics exports scheduler queue depths and outcome counters. A nil
// *Metrics is valid and records nothing, so tests can pass nil.
type Metrics struct {
	queued   prometheus.Gauge
	retrying prometheus.Gauge
	inflight prometheus.Gauge
	failed   prometheus.Gauge

	dispatchedTotal prometheus.Counter
	retriesTotal    prometheus.Counter
	failuresTotal   prometheus.Counter
	cancelledTotal  prometheus.Counter
}

// NewMetrics builds and registers scheduler metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scanner", Subsystem: "scheduler",
			Name: "queued", Help: "Requests awaiting dispatch.",
		}),
		retrying: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scanner", Subsystem: "scheduler",
			Name: "retrying", Help: "Requests awaiting retry replay.",
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scanner", Subsystem: "scheduler",
			Name: "in_flight", Help: "Requests currently executing.",
		}),
		failed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "scanner", Subsystem: "scheduler",
			Name: "failed_keys", Help: "Keys marked failed after retry exhaustion.",
		}),
		dispatchedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scanner", Subsystem: "scheduler",
			Name: "dispatched_total", Help: "Operations dispatched.",
		}),
		retriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scanner", Subsystem: "scheduler",
			Name: "retries_total", Help: "Operations re-queued after retryable failure.",
		}),
		failuresTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scanner", Subsystem: "scheduler",
			Name: "failures_total", Help: "Operations failed terminally.",
		}),
		cancelledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scanner", Subsystem: "scheduler",
			Name: "cancelled_total", Help: "Requests rejected by cancellation.",
		}),
	}
	reg.MustRegister(m.queued, m.retrying, m.inflight, m.failed,
		m.dispatchedTotal, m.retriesTotal, m.failuresTotal, m.cancelledTotal)
	return m
}

func (m *Metrics) setQueues(queued, retrying, inflight, failed int) {
	if m == nil {
		return
	}
	m.queued.Set(float64(queued))
	m.retrying.Set(float64(retrying))
	m.inflight.Set(float64(inflight))
	m.failed.Set(float64(failed))
}

func (m *Metrics) dispatched() {
	if m == nil {
		return
	}
	m.dispatchedTotal.Inc()
}

func (m *Metrics) retried() {
	if m == nil {
		return
	}
	m.retriesTotal.Inc()
}

func (m *Metrics) failedTerminal() {
	if m == nil {
		return
	}
	m.failuresTotal.Inc()
}

func (m *Metrics) cancelled() {
	if m == nil {
		return
	}
	m.cancelledTotal.Inc()
}
