package providers

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"vanity/internal/structures"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncUpstreamRequests(source, outcome string)
	ObserveUpstreamDuration(source string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	IncRateLimited()
}

type MetricsProvider struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	upstreamRequests *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	rateLimited      prometheus.Counter
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncUpstreamRequests(source, outcome string) {
	m.upstreamRequests.WithLabelValues(source, outcome).Inc()
}

func (m *MetricsProvider) ObserveUpstreamDuration(source string, duration time.Duration) {
	m.upstreamDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits()   { m.cacheHits.Inc() }
func (m *MetricsProvider) IncCacheMisses() { m.cacheMisses.Inc() }
func (m *MetricsProvider) IncRateLimited() { m.rateLimited.Inc() }

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vanity_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vanity_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		upstreamRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vanity_upstream_requests_total",
			Help: "Total number of upstream API requests by source and outcome",
		}, []string{"source", "outcome"}),

		upstreamDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vanity_upstream_duration_seconds",
			Help:    "Upstream API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vanity_cache_hits_total",
			Help: "Total number of response cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vanity_cache_misses_total",
			Help: "Total number of response cache misses",
		}),

		rateLimited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vanity_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                  {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration)  {}
func (n *noopMetrics) IncUpstreamRequests(_, _ string)                   {}
func (n *noopMetrics) ObserveUpstreamDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                     {}
func (n *noopMetrics) IncCacheMisses()                                   {}
func (n *noopMetrics) IncRateLimited()                                   {}
