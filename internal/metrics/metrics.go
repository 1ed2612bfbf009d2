// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_http_requests_total",
		Help: "Total number of HTTP requests by route and status",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "maintenance_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	RequestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_request_transitions_total",
		Help: "Work order state transitions by target state",
	}, []string{"state"})

	OverdueRequests = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "maintenance_requests_overdue",
		Help: "Open work orders found overdue by the last sweep",
	})

	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maintenance_logins_total",
		Help: "Sign-in attempts by outcome",
	}, []string{"outcome"})
)

// Login outcomes.
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
	LoginLocked  = "locked"
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
