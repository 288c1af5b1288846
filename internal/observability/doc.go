// Package observability provides production-grade observability infrastructure
// including structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// This package centralizes observability concerns to enable:
//   - Request tracing across service boundaries
//   - Structured logging with context propagation
//   - Prometheus metrics for monitoring
//   - SLO tracking for upstream call reliability
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and the resilience exporter
//   - slo: Service level objective gauges fed from the analytics window
//   - tracing: OpenTelemetry tracing integration
//
// Example usage:
//
//	import (
//	    "eventscout/internal/observability/logging"
//	    "eventscout/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("application started")
//
//	    mgr := resilience.New(
//	        resilience.WithLogger(logger),
//	        resilience.WithMetrics(metrics.Exporter{}),
//	    )
//	    _ = mgr
//	}
package observability
