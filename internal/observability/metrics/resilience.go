package metrics

import (
	"time"

	"eventscout/internal/resilience"
	"eventscout/internal/resilience/circuitbreaker"
	"eventscout/internal/resilience/classify"
)

// Exporter publishes resilience events to the Prometheus registry. Inject it
// into the manager via resilience.WithMetrics.
type Exporter struct{}

var _ resilience.Metrics = Exporter{}

// ObserveAttempt records a single upstream call attempt. Failed attempts are
// additionally counted by their classified error kind.
func (Exporter) ObserveAttempt(service string, success bool, kind classify.Kind, latency time.Duration) {
	result := "success"
	if !success {
		result = "failure"
		UpstreamAttemptErrors.WithLabelValues(service, kind.String()).Inc()
	}
	UpstreamAttemptsTotal.WithLabelValues(service, result).Inc()
	UpstreamAttemptDuration.WithLabelValues(service).Observe(latency.Seconds())
}

// AddRetry records a retry scheduled after a failed attempt.
func (Exporter) AddRetry(service string, kind classify.Kind) {
	RetriesTotal.WithLabelValues(service, kind.String()).Inc()
}

// AddBudgetRejection records a retry denied by the retry budget.
func (Exporter) AddBudgetRejection(service, scope string) {
	BudgetRejectionsTotal.WithLabelValues(service, scope).Inc()
}

// AddCircuitRejection records a call rejected by an open circuit breaker.
func (Exporter) AddCircuitRejection(service string) {
	CircuitRejectionsTotal.WithLabelValues(service).Inc()
}

// AddFallback records a fallback activation by the named operator.
func (Exporter) AddFallback(service, operator string) {
	FallbacksTotal.WithLabelValues(service, operator).Inc()
}

// SetCircuitState updates the per-service breaker state gauge. The numeric
// value follows circuitbreaker.State (0=closed, 1=open, 2=half_open).
func (Exporter) SetCircuitState(service string, state circuitbreaker.State) {
	CircuitState.WithLabelValues(service).Set(float64(state))
}

// RecordEventsDiscovered records events produced by the discovery pipeline
// for the given source.
func RecordEventsDiscovered(source string, count int) {
	if count <= 0 {
		return
	}
	EventsDiscoveredTotal.WithLabelValues(source).Add(float64(count))
}

// RecordEventEnhanced records an event enhancement served by the given
// provider ("gemini", "claude", or "template").
func RecordEventEnhanced(provider string) {
	EventsEnhancedTotal.WithLabelValues(provider).Inc()
}

// RecordDiscoveryRun records a completed pipeline run.
// Status should be "success", "partial", or "failure".
func RecordDiscoveryRun(status string, duration time.Duration) {
	DiscoveryRunsTotal.WithLabelValues(status).Inc()
	DiscoveryRunDuration.Observe(duration.Seconds())
}

// RecordCrawlContentSize records the size of a crawled page in bytes.
func RecordCrawlContentSize(size int) {
	if size < 0 {
		return
	}
	CrawlContentSize.Observe(float64(size))
}

// RecordDBQuery records the duration of a database query operation.
// Operation should describe the query type (e.g., "insert_event", "select_events").
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateDBConnectionStats updates database connection pool statistics.
func UpdateDBConnectionStats(active, idle int) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}
