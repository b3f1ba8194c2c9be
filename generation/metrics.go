package generation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records gateway calls. A nil *Metrics records nothing.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the gateway collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jianghu_generation_requests_total",
				Help: "Total number of generation requests by kind and status.",
			},
			[]string{"kind", "status"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jianghu_generation_duration_seconds",
				Help:    "Histogram of generation request durations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) observe(kind string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.requests.WithLabelValues(kind, status).Inc()
	m.duration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
