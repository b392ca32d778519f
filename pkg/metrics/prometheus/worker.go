package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/thumbgate/pkg/metrics"
	"github.com/marmos91/thumbgate/pkg/worker"
)

type workerMetrics struct {
	slots   prometheus.Gauge
	active  prometheus.Gauge
	backlog prometheus.Gauge
	panics  prometheus.Counter
}

// NewWorkerMetrics returns worker pool metrics, or nil if metrics are not
// enabled.
func NewWorkerMetrics() worker.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	f := promauto.With(metrics.GetRegistry())

	return &workerMetrics{
		slots: f.NewGauge(prometheus.GaugeOpts{
			Name: "thumbgate_worker_slots",
			Help: "Configured worker slots",
		}),
		active: f.NewGauge(prometheus.GaugeOpts{
			Name: "thumbgate_worker_active",
			Help: "Worker slots currently running a task",
		}),
		backlog: f.NewGauge(prometheus.GaugeOpts{
			Name: "thumbgate_worker_backlog",
			Help: "Tasks waiting for a free slot",
		}),
		panics: f.NewCounter(prometheus.CounterOpts{
			Name: "thumbgate_worker_panics_total",
			Help: "Tasks that panicked",
		}),
	}
}

func (m *workerMetrics) SetSlots(n int)   { m.slots.Set(float64(n)) }
func (m *workerMetrics) SetActive(n int)  { m.active.Set(float64(n)) }
func (m *workerMetrics) SetBacklog(n int) { m.backlog.Set(float64(n)) }
func (m *workerMetrics) IncPanics()       { m.panics.Inc() }
