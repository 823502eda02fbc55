package api

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks request counts per route/status, grounded on ocr.Metrics'
// pattern of a small prometheus.Registerer-scoped counter set.
type Metrics struct {
	requestsTotal  *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

// NewMetrics registers the API's counters against reg. Pass
// prometheus.NewRegistry() in tests to avoid cross-test collisions;
// pass prometheus.DefaultRegisterer in production.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "screensearch_api_requests_total",
			Help: "Total HTTP requests handled, labeled by method, path, and status.",
		}, []string{"method", "path", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "screensearch_api_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	reg.MustRegister(m.requestsTotal, m.requestLatency)
	return m
}
