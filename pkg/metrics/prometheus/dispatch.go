package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/thumbgate/pkg/bus"
	"github.com/marmos91/thumbgate/pkg/metrics"
)

type dispatchMetrics struct {
	messages *prometheus.CounterVec
	duration *prometheus.HistogramVec
	pending  prometheus.Gauge
}

// NewDispatchMetrics returns bus metrics, or nil if metrics are not enabled.
func NewDispatchMetrics() bus.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &dispatchMetrics{
		messages: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "thumbgate_dispatch_total",
				Help: "Dispatched messages by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "thumbgate_dispatch_duration_milliseconds",
				Help: "Time from send to reply in milliseconds",
				Buckets: []float64{
					5,
					10,
					25,
					50,
					100,
					250,
					500,
					1000,
					5000,  // large batches
					30000, // default timeout
				},
			},
			[]string{"endpoint"},
		),
		pending: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "thumbgate_dispatch_pending",
				Help: "Messages awaiting a reply",
			},
		),
	}
}

func (m *dispatchMetrics) ObserveDispatch(endpoint, outcome string, d time.Duration) {
	m.messages.WithLabelValues(endpoint, outcome).Inc()
	m.duration.WithLabelValues(endpoint).Observe(milliseconds(d))
}

func (m *dispatchMetrics) SetPending(n int) {
	m.pending.Set(float64(n))
}
