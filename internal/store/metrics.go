package store

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EventsTotal  prometheus.Counter
	UnknownTotal prometheus.Counter
	ResetsTotal  prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			EventsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "mirror_store_events_total",
				Help: "Total number of events applied to the store",
			}),
			UnknownTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "mirror_store_unknown_events_total",
				Help: "Total number of events the store had no handler for",
			}),
			ResetsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "mirror_store_resets_total",
				Help: "Total number of realtime state resets",
			}),
		}
	})
	return metricsInstance
}

func (m *Metrics) RecordEvent() {
	if m == nil || m.EventsTotal == nil {
		return
	}
	m.EventsTotal.Inc()
}

func (m *Metrics) RecordUnknownEvent() {
	if m == nil || m.UnknownTotal == nil {
		return
	}
	m.UnknownTotal.Inc()
}

func (m *Metrics) RecordReset() {
	if m == nil || m.ResetsTotal == nil {
		return
	}
	m.ResetsTotal.Inc()
}
