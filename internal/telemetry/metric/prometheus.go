package metric

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mbaas"

// Registry holds all client metrics on a private Prometheus registry.
type Registry struct {
	registry *prometheus.Registry

	// Session metrics
	SessionPresent    prometheus.Gauge
	SessionOperations *prometheus.CounterVec

	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RateLimitWait   prometheus.Histogram
}

// NewRegistry creates a registry with all client metrics plus the Go runtime
// and process collectors.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),

		SessionPresent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_present",
			Help:      "1 when a session token is stored locally, 0 otherwise",
		}),
		SessionOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_operations_total",
			Help:      "Session operations by operation and result",
		}, []string{"operation", "result"}),

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests sent to the backend by endpoint and status",
		}, []string{"endpoint", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Backend request latency in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		RateLimitWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rate_limit_wait_seconds",
			Help:      "Time spent waiting on the client-side rate limiter",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}

	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.SessionPresent,
		r.SessionOperations,
		r.RequestsTotal,
		r.RequestDuration,
		r.RateLimitWait,
	)

	return r
}

var (
	globalOnce     sync.Once
	globalRegistry *Registry
)

// Global returns the process-wide registry, creating it on first use.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// Handler returns an HTTP handler for the global registry.
func Handler() http.Handler {
	return Global().Handler()
}

// Handler returns an HTTP handler serving this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registerer exposes the underlying registry so other components can add
// their own collectors.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.registry
}

// SetSessionPresent records whether a session token is stored.
func (r *Registry) SetSessionPresent(present bool) {
	if present {
		r.SessionPresent.Set(1)
		return
	}
	r.SessionPresent.Set(0)
}

// RecordSessionOperation counts one session operation outcome.
func (r *Registry) RecordSessionOperation(operation, result string) {
	r.SessionOperations.WithLabelValues(operation, result).Inc()
}

// RecordRequest counts one backend request.
func (r *Registry) RecordRequest(endpoint, status string) {
	r.RequestsTotal.WithLabelValues(endpoint, status).Inc()
}

// ObserveRequestDuration records a backend request latency in seconds.
func (r *Registry) ObserveRequestDuration(endpoint string, seconds float64) {
	r.RequestDuration.WithLabelValues(endpoint).Observe(seconds)
}

// ObserveRateLimitWait records time spent blocked on the rate limiter.
func (r *Registry) ObserveRateLimitWait(seconds float64) {
	r.RateLimitWait.Observe(seconds)
}
