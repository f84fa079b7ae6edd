// Package telemetry exposes prometheus instrumentation for the SDK.
// Metrics live on a struct rather than package globals so several clients
// can run in one process with separate registries.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics carries the SDK's counters and gauges.
type Metrics struct {
	Evaluations      *prometheus.CounterVec
	FetchAttempts    prometheus.Counter
	FetchFailures    prometheus.Counter
	StreamReconnects prometheus.Counter
	CachedEntities   *prometheus.GaugeVec
}

// New builds the metric set and registers it on reg. A nil registerer
// leaves the metrics usable but unregistered, which is what tests and
// metric-less clients want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appconfig_evaluations_total",
				Help: "Total feature and property evaluations",
			},
			[]string{"kind"},
		),
		FetchAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appconfig_fetch_attempts_total",
			Help: "Configuration pull cycles started",
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appconfig_fetch_failures_total",
			Help: "Configuration pull cycles that exhausted their retries",
		}),
		StreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "appconfig_stream_reconnects_total",
			Help: "Push subscription reconnect attempts",
		}),
		CachedEntities: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "appconfig_cached_entities",
				Help: "Entities currently held in the local cache",
			},
			[]string{"category"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Evaluations, m.FetchAttempts, m.FetchFailures, m.StreamReconnects, m.CachedEntities)
	}
	return m
}

// SetCacheCounts updates the cached-entity gauges after a reload.
func (m *Metrics) SetCacheCounts(features, properties, segments int) {
	m.CachedEntities.WithLabelValues("feature").Set(float64(features))
	m.CachedEntities.WithLabelValues("property").Set(float64(properties))
	m.CachedEntities.WithLabelValues("segment").Set(float64(segments))
}
