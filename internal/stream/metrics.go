package stream

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ConnectsTotal prometheus.Counter
	FailuresTotal prometheus.Counter
	EventsTotal   prometheus.Counter
}

var (
	metricsOnce     sync.Once
	metricsInstance *Metrics
)

func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInstance = &Metrics{
			ConnectsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "mirror_stream_connects_total",
				Help: "Total number of successful stream connections",
			}),
			FailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "mirror_stream_failures_total",
				Help: "Total number of stream terminations, clean closes included",
			}),
			EventsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "mirror_stream_events_total",
				Help: "Total number of events received over the stream",
			}),
		}
	})
	return metricsInstance
}

func (m *Metrics) RecordConnect() {
	if m == nil || m.ConnectsTotal == nil {
		return
	}
	m.ConnectsTotal.Inc()
}

func (m *Metrics) RecordFailure() {
	if m == nil || m.FailuresTotal == nil {
		return
	}
	m.FailuresTotal.Inc()
}

func (m *Metrics) RecordEvent() {
	if m == nil || m.EventsTotal == nil {
		return
	}
	m.EventsTotal.Inc()
}
