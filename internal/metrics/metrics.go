// Package metrics exports persistence counters and timings to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	artifacts  *prometheus.CounterVec
	loadedMaps prometheus.Gauge
	colonies   prometheus.Gauge
}

// New creates the collectors under namespace and registers them on reg.
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Persistence operations by name and result.",
		}, []string{"op", "result"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of persistence operations.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"op"}),
		artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_written_total",
			Help:      "Artifacts written by kind.",
		}, []string{"kind"}),
		loadedMaps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loaded_maps",
			Help:      "Maps currently attached to the live world.",
		}),
		colonies: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "colonies",
			Help:      "Colonies known in the loaded world.",
		}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.durations, m.artifacts, m.loadedMaps, m.colonies} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records one finished operation started at start.
func (m *Metrics) Observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	result := resultOK
	if err != nil {
		result = resultError
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.durations.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ArtifactWritten(kind string) {
	if m == nil {
		return
	}
	m.artifacts.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetLoadedMaps(n int) {
	if m == nil {
		return
	}
	m.loadedMaps.Set(float64(n))
}

func (m *Metrics) SetColonies(n int) {
	if m == nil {
		return
	}
	m.colonies.Set(float64(n))
}
