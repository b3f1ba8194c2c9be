package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nathoo/jianghu/types"
)

// Metrics counts engine activity. A nil *Metrics records nothing.
type Metrics struct {
	sceneLoads *prometheus.CounterVec
}

// NewMetrics registers the engine collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		sceneLoads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "jianghu_scene_loads_total",
				Help: "Total number of scenes loaded by scene type.",
			},
			[]string{"type"},
		),
	}
}

func (m *Metrics) sceneLoaded(t types.SceneType) {
	if m == nil {
		return
	}
	m.sceneLoads.WithLabelValues(string(t)).Inc()
}
