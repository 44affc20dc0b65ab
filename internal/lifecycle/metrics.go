package lifecycle

import (
	"feedchain/pkg/types"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	transitions *prometheus.CounterVec
	rejections  *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedchain",
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Food post status transitions applied, by source and target status.",
		}, []string{"from", "to"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedchain",
			Subsystem: "lifecycle",
			Name:      "rejections_total",
			Help:      "Lifecycle operations rejected, by operation and error kind.",
		}, []string{"operation", "kind"}),
	}

	if reg != nil {
		reg.MustRegister(m.transitions, m.rejections)
	}

	return m
}

func (m *metrics) transition(from, to string) {
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *metrics) rejected(operation string, err error) {
	kind := "internal"
	if k := types.Kind(err); k != nil {
		kind = k.Error()
	}
	m.rejections.WithLabelValues(operation, kind).Inc()
}
