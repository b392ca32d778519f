package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/thumbgate/pkg/metrics"
	"github.com/marmos91/thumbgate/pkg/requestctx"
)

type remoteMetrics struct {
	joins    *prometheus.CounterVec
	closes   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	open     prometheus.Gauge
}

// NewRemoteSessionMetrics returns remote session lifecycle metrics, or nil
// if metrics are not enabled.
func NewRemoteSessionMetrics() requestctx.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	f := promauto.With(metrics.GetRegistry())

	return &remoteMetrics{
		joins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "thumbgate_remote_session_joins_total",
			Help: "Remote session joins by result",
		}, []string{"result"}),
		closes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "thumbgate_remote_session_closes_total",
			Help: "Remote session closes by result",
		}, []string{"result"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "thumbgate_remote_session_operation_duration_milliseconds",
			Help:    "Duration of remote session join and close in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}, []string{"operation"}),
		open: f.NewGauge(prometheus.GaugeOpts{
			Name: "thumbgate_remote_sessions_open",
			Help: "Remote sessions joined and not yet closed",
		}),
	}
}

func (m *remoteMetrics) ObserveJoin(result string, d time.Duration) {
	m.joins.WithLabelValues(result).Inc()
	m.duration.WithLabelValues("join").Observe(milliseconds(d))
	if result == requestctx.ResultOK {
		m.open.Inc()
	}
}

// ObserveClose decrements the open gauge whatever the result: a failed
// close still abandons the session on this side.
func (m *remoteMetrics) ObserveClose(result string, d time.Duration) {
	m.closes.WithLabelValues(result).Inc()
	m.duration.WithLabelValues("close").Observe(milliseconds(d))
	m.open.Dec()
}
