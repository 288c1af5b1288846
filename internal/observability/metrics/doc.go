// Package metrics provides Prometheus metrics registry and recording utilities.
//
// This package centralizes all application metrics including:
//   - HTTP request metrics (duration, count, size)
//   - Resilience metrics (attempts, retries, budget and circuit rejections, fallbacks)
//   - Discovery pipeline metrics (events discovered, enhancement provider, run duration)
//   - Database query metrics
//
// All metrics are automatically registered with the Prometheus default registry
// and exposed via the /metrics endpoint. The Exporter type feeds the resilience
// manager's events into this registry.
//
// Example usage:
//
//	import "eventscout/internal/observability/metrics"
//
//	func main() {
//	    mgr := resilience.New(resilience.WithMetrics(metrics.Exporter{}))
//	    _ = mgr
//	}
//
//	func recordRun(start time.Time, discovered int) {
//	    metrics.RecordEventsDiscovered("cse", discovered)
//	    metrics.RecordDiscoveryRun("success", time.Since(start))
//	}
package metrics
