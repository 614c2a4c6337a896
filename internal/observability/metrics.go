// Package observability wires Prometheus metrics for the HTTP surface and
// the lifecycle state machines.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects the application's Prometheus metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	transitionsTotal       *prometheus.CounterVec
	activeRoutes           prometheus.Gauge
	unresolvedDeliveries   prometheus.Gauge
	generationFailedRoutes prometheus.Gauge
}

// NewMetrics initialises the registry and base metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "distriflow_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "distriflow_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "distriflow_status_transitions_total",
		Help: "Applied lifecycle transitions by entity and target status.",
	}, []string{"entity", "status"})
	activeRoutes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "distriflow_active_routes",
		Help: "Routes currently en_curso, refreshed by the reconcile sweep.",
	})
	unresolved := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "distriflow_unresolved_deliveries",
		Help: "Unresolved deliveries across active routes.",
	})
	genFailed := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "distriflow_generation_failed_routes",
		Help: "Started routes with zero generated deliveries.",
	})
	registry.MustRegister(requests, duration, transitions, activeRoutes, unresolved, genFailed)
	return &Metrics{
		registry:               registry,
		handler:                promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:          requests,
		requestDuration:        duration,
		transitionsTotal:       transitions,
		activeRoutes:           activeRoutes,
		unresolvedDeliveries:   unresolved,
		generationFailedRoutes: genFailed,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveTransition counts one applied lifecycle transition.
func (m *Metrics) ObserveTransition(entity, status string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(entity, status).Inc()
}

// RecordSweep publishes the reconcile sweep aggregates.
func (m *Metrics) RecordSweep(activeRoutes, unresolvedDeliveries, generationFailed int) {
	if m == nil {
		return
	}
	m.activeRoutes.Set(float64(activeRoutes))
	m.unresolvedDeliveries.Set(float64(unresolvedDeliveries))
	m.generationFailedRoutes.Set(float64(generationFailed))
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
