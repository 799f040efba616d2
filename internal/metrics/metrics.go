package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks searches by origin ("api" | "cli") and outcome.
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_finder_searches_total",
			Help: "Total number of product searches by source and result.",
		},
		[]string{"source", "result"}, // result = found | not_found | error | invalid | busy
	)

	// Tracks outbound HTTP calls (catalog, exchange rate, history service).
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Total number of upstream HTTP requests made (by endpoint and status).",
		},
		[]string{"endpoint", "status"},
	)

	// Measures duration of upstream HTTP requests.
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of upstream HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms → ~10s
		},
		[]string{"endpoint"},
	)

	// Tracks product and exchange-rate cache hits and misses.
	CacheAccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_access_total",
			Help: "Number of cache hits/misses in the catalog caches.",
		},
		[]string{"cache", "result"}, // hit | miss
	)

	// Durability writes that failed; in-memory history stays authoritative.
	HistoryPersistFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_persist_failures_total",
			Help: "Number of history durability writes that failed, by store mode.",
		},
		[]string{"mode"},
	)

	HistoryEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "history_evictions_total",
			Help: "Number of history records dropped by capacity eviction.",
		},
		[]string{"mode"},
	)

	// Tracks NATS messages published by subject and result.
	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages published.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_message_latency_seconds",
			Help:    "Time taken to publish NATS messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_finder_errors_total",
			Help: "Count of errors by component.",
		},
		[]string{"component", "reason"},
	)

	// Gauges the last completed background job run (seconds since epoch).
	LastJobRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "price_finder_last_job_run_timestamp",
			Help: "Timestamp (unix seconds) of the last successful background job run.",
		},
		[]string{"job"},
	)
)

// ObserveDuration records the time taken since start on a histogram or summary.
func ObserveDuration(v interface{}, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// counters are not meant for duration tracking
	}
}

func IncSearch(source, result string) {
	SearchesTotal.WithLabelValues(source, result).Inc()
}

func IncUpstreamRequest(endpoint, status string) {
	UpstreamRequestsTotal.WithLabelValues(endpoint, status).Inc()
}

func IncCacheAccess(cache, result string) {
	CacheAccess.WithLabelValues(cache, result).Inc()
}

func IncPersistFailure(mode string) {
	HistoryPersistFailures.WithLabelValues(mode).Inc()
}

func AddEvictions(mode string, n int) {
	if n > 0 {
		HistoryEvictions.WithLabelValues(mode).Add(float64(n))
	}
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func SetLastJobRun(job string, t time.Time) {
	LastJobRun.WithLabelValues(job).Set(float64(t.Unix()))
}
