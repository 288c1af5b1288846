// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestSize measures HTTP request body size in bytes
	HTTPRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// HTTPResponseSize measures HTTP response body size in bytes
	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// ActiveConnections tracks the number of active HTTP connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)
)

// Resilience metrics track retry, budget, and circuit breaker behavior
// around calls to external services.
var (
	// UpstreamAttemptsTotal counts individual call attempts by outcome
	UpstreamAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_attempts_total",
			Help: "Total number of upstream call attempts",
		},
		[]string{"service", "result"}, // result: success, failure
	)

	// UpstreamAttemptErrors counts failed attempts by classified error kind
	UpstreamAttemptErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_attempt_errors_total",
			Help: "Total number of failed upstream attempts by error kind",
		},
		[]string{"service", "kind"},
	)

	// UpstreamAttemptDuration measures per-attempt latency in seconds
	UpstreamAttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "resilience_attempt_duration_seconds",
			Help:    "Upstream call attempt duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"service"},
	)

	// RetriesTotal counts scheduled retries by service and error kind
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_retries_total",
			Help: "Total number of retries scheduled after failed attempts",
		},
		[]string{"service", "kind"},
	)

	// BudgetRejectionsTotal counts retries denied by the retry budget
	BudgetRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_budget_rejections_total",
			Help: "Total number of retries denied by the retry budget",
		},
		[]string{"service", "scope"}, // scope: service, global
	)

	// CircuitRejectionsTotal counts calls rejected by an open circuit breaker
	CircuitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_circuit_rejections_total",
			Help: "Total number of calls rejected by an open circuit breaker",
		},
		[]string{"service"},
	)

	// FallbacksTotal counts fallback activations by composing operator
	FallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resilience_fallbacks_total",
			Help: "Total number of fallback activations",
		},
		[]string{"service", "operator"},
	)

	// CircuitState exposes the current breaker state per service
	// (0=closed, 1=open, 2=half_open)
	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "resilience_circuit_state",
			Help: "Current circuit breaker state (0=closed, 1=open, 2=half_open)",
		},
		[]string{"service"},
	)
)

// Discovery metrics track the event discovery pipeline
var (
	// EventsDiscoveredTotal counts events produced by the pipeline per source
	EventsDiscoveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_discovered_total",
			Help: "Total number of events discovered",
		},
		[]string{"source"},
	)

	// EventsEnhancedTotal counts enhanced events by the provider that served
	EventsEnhancedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_enhanced_total",
			Help: "Total number of events enhanced by provider",
		},
		[]string{"provider"}, // provider: gemini, claude, template
	)

	// DiscoveryRunsTotal counts pipeline runs by final status
	DiscoveryRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discovery_runs_total",
			Help: "Total number of discovery pipeline runs",
		},
		[]string{"status"}, // status: success, partial, failure
	)

	// DiscoveryRunDuration measures the duration of a full pipeline run
	DiscoveryRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "discovery_run_duration_seconds",
			Help:    "Time taken for a full discovery pipeline run",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)

	// CrawlContentSize measures crawled page content size in bytes
	CrawlContentSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "crawl_content_size_bytes",
			Help: "Crawled page content size in bytes",
			Buckets: []float64{
				100, 200, 400, 800, 1600, 3200, 6400, 12800,
				25600, 51200, 102400, 204800, 409600, 819200,
				1638400, 3276800, 6553600, 10485760, // up to 10MB
			},
		},
	)
)

// Database metrics track database performance
var (
	// DBQueryDuration measures database query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"operation"},
	)

	// DBConnectionsActive tracks active database connections
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_active",
			Help: "Number of active database connections",
		},
	)

	// DBConnectionsIdle tracks idle database connections
	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)
)

// RecordHTTPRequest records an HTTP request with its metadata
func RecordHTTPRequest(method, path, status string, duration time.Duration, requestSize, responseSize int) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())

	if requestSize > 0 {
		HTTPRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	}
	if responseSize > 0 {
		HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
	}
}

// RecordOperationDuration records the duration of a named operation
func RecordOperationDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
