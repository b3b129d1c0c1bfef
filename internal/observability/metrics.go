package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases, SLO breaches.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation, capacity limits.
	HTTPRequestsInFlight prometheus.Gauge

	// Upstream connector call rate by connector and outcome. Watch for: error vs success ratio per source.
	ConnectorCallsTotal *prometheus.CounterVec

	// Upstream connector latency per call. Watch for: p95 > 2s (upstream degradation), p99 > 5s (timeout risk).
	ConnectorDuration *prometheus.HistogramVec

	// Snapshots served per data source. Fallback share = intelligent_fallback / sum(all sources).
	SourceServedTotal *prometheus.CounterVec

	// Cache hits. Hit rate = hits/(hits+misses); misses equal connector call attempts.
	CacheHitsTotal *prometheus.CounterVec

	// Reverse-geocode lookups that fell through to regional estimation.
	GeocoderFallbacksTotal prometheus.Counter

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	ConnectorCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connectorCallsTotal",
			Help: "Total number of upstream data-source calls",
		},
		[]string{"connector", "status"},
	)
	ConnectorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "connectorDurationSeconds",
			Help:    "Upstream data-source latency in seconds (per call)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"connector"},
	)
	SourceServedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sourceServedTotal",
			Help: "Air-quality snapshots served, by originating data source",
		},
		[]string{"source"},
	)
	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheHitsTotal",
			Help: "Total number of cache hits, by cache type",
		},
		[]string{"cacheType"},
	)
	GeocoderFallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "geocoderFallbacksTotal",
			Help: "Reverse-geocode lookups resolved by regional estimation instead of the upstream geocoder",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		ConnectorCallsTotal, ConnectorDuration,
		SourceServedTotal, CacheHitsTotal,
		GeocoderFallbacksTotal,
		RateLimitDeniedTotal,
	)
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
