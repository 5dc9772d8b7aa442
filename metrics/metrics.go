package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache facade metrics, labelled by key namespace ("poll", "polls",
	// "user", "other").
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polly_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"namespace"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polly_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"namespace"},
	)

	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polly_cache_evictions_total",
			Help: "Total number of entries evicted by the memory store at capacity",
		},
	)

	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polly_cache_invalidations_total",
			Help: "Total number of cache invalidation calls",
		},
		[]string{"namespace"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polly_cache_errors_total",
			Help: "Total number of cache backend errors swallowed by the facade",
		},
		[]string{"operation"},
	)

	// HTTP metrics.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polly_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polly_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	// Voting metrics.
	VotesCast = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polly_votes_cast_total",
			Help: "Total number of votes accepted",
		},
	)

	PollsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polly_polls_created_total",
			Help: "Total number of polls created",
		},
	)

	// Realtime metrics.
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "polly_websocket_clients",
			Help: "Current number of connected websocket clients",
		},
	)

	WebsocketDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "polly_websocket_dropped_total",
			Help: "Total number of events dropped on slow websocket clients",
		},
	)
)

// RecordCacheRead bumps the hit or miss counter for a namespace.
func RecordCacheRead(namespace string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(namespace).Inc()
		return
	}
	CacheMisses.WithLabelValues(namespace).Inc()
}

// RecordHTTPRequest observes one served request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
