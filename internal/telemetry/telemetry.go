// Package telemetry owns the process's Prometheus registry and the
// counters/gauges every pipeline stage reports into. A non-global
// registry is used throughout so tests can assert on metrics in
// isolation.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every counter/gauge the pipeline updates.
type Metrics struct {
	registry *prometheus.Registry

	BlocksProcessed    *prometheus.CounterVec
	RPCRequests        *prometheus.CounterVec
	RPCErrors          *prometheus.CounterVec
	NotificationsSent  *prometheus.CounterVec
	RegistrySize       prometheus.Gauge
}

// New builds a fresh registry with every metric registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		BlocksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "account_monitor_blocks_processed_total",
			Help: "Blocks fully extracted, by chain.",
		}, []string{"chain"}),
		RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "account_monitor_rpc_requests_total",
			Help: "RPC calls made, by chain and method.",
		}, []string{"chain", "method"}),
		RPCErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "account_monitor_rpc_errors_total",
			Help: "RPC calls that ultimately failed, by chain.",
		}, []string{"chain"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "account_monitor_notifications_sent_total",
			Help: "Notifications delivered, by chain.",
		}, []string{"chain"}),
		RegistrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "account_monitor_registry_size",
			Help: "Current number of watched accounts.",
		}),
	}

	reg.MustRegister(m.BlocksProcessed, m.RPCRequests, m.RPCErrors, m.NotificationsSent, m.RegistrySize)
	return m
}

// Handler serves the registry in the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
