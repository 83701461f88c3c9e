package command

import (
	"github.com/pixil98/go-persistent-worlds/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type MetricsConfig struct {
	// Addr is where /metrics is served; empty disables the endpoint.
	Addr string `json:"addr"`
}

func (m *MetricsConfig) buildServer(g prometheus.Gatherer) *metrics.Server {
	if m.Addr == "" {
		return nil
	}
	return metrics.NewServer(m.Addr, g)
}
