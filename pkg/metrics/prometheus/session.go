package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/thumbgate/pkg/metrics"
	"github.com/marmos91/thumbgate/pkg/session/store"
)

// sessionMetrics is the Prometheus implementation of store.Metrics.
type sessionMetrics struct {
	lookups  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewSessionMetrics returns session store metrics, or nil if metrics are
// not enabled.
func NewSessionMetrics() store.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &sessionMetrics{
		lookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "thumbgate_session_lookups_total",
				Help: "Session record lookups by backend and result",
			},
			[]string{"backend", "result"}, // result: hit, miss, undecodable, error
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "thumbgate_session_lookup_duration_milliseconds",
				Help: "Duration of session record lookups in milliseconds",
				Buckets: []float64{
					0.1, // local cache
					0.5,
					1,
					5,
					10,
					50,
					100,
					500,
				},
			},
			[]string{"backend"},
		),
	}
}

func (m *sessionMetrics) ObserveLookup(backend, result string, d time.Duration) {
	m.lookups.WithLabelValues(backend, result).Inc()
	m.duration.WithLabelValues(backend).Observe(milliseconds(d))
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}
