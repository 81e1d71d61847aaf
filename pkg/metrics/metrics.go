// Package metrics registers Prometheus collectors for the proxy and resolver.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// The default registry panics on duplicate registration; guard
	// against repeated app construction in tests.
	once sync.Once

	// HTTPRequestsTotal counts handled requests by method, route class
	// and status. Route is a coarse class (video, subtitle, api, probe),
	// never a raw path, to keep label cardinality bounded.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamgate_http_requests_total",
			Help: "Handled HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks request latency per route class.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamgate_http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// ResolutionsTotal counts embed resolutions by provider and outcome.
	ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamgate_resolutions_total",
			Help: "Embed URL resolutions.",
		},
		[]string{"outcome"},
	)

	// CacheOpsTotal counts cache lookups by subsystem and result.
	CacheOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamgate_cache_ops_total",
			Help: "Cache lookups.",
		},
		[]string{"subsystem", "result"},
	)
)

// Init registers the collectors exactly once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			ResolutionsTotal,
			CacheOpsTotal,
		)
	})
}

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
