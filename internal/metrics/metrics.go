// Package metrics exposes Prometheus counters for the authentication endpoints.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	AuthRequests  *prometheus.CounterVec
	StoreConnects *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the collectors and registers them together with the Go runtime
// and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		AuthRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_auth_requests_total",
				Help: "Total number of authentication requests by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		StoreConnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_store_connect_total",
				Help: "Total number of user store connection attempts by result",
			},
			[]string{"result"},
		),
		registry: registry,
	}

	registry.MustRegister(m.AuthRequests)
	registry.MustRegister(m.StoreConnects)

	return m
}

func (m *Metrics) ObserveAuth(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthRequests.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveConnect(result string) {
	if m == nil {
		return
	}
	m.StoreConnects.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
