// Package metrics holds the Prometheus instruments exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the HTTP and authentication instruments. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry prometheus.Gatherer

	HTTPInFlight        prometheus.Gauge
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	AuthEventsTotal     *prometheus.CounterVec
}

// New creates the instruments and registers them with reg. Tests pass a
// fresh prometheus.NewRegistry() so repeated construction does not panic.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		HTTPInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		AuthEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_events_total",
			Help: "Authentication operations by outcome.",
		}, []string{"op", "outcome"}),
	}
	reg.MustRegister(m.HTTPInFlight, m.HTTPRequestsTotal, m.HTTPRequestDuration, m.AuthEventsTotal)
	return m
}

// ObserveAuth counts one register/login/refresh/authenticate outcome.
func (m *Metrics) ObserveAuth(op, outcome string) {
	if m == nil {
		return
	}
	m.AuthEventsTotal.WithLabelValues(op, outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
