// Package tracing provides OpenTelemetry tracing integration.
//
// Features:
//   - Automatic HTTP request tracing via Middleware
//   - W3C Trace Context propagation from incoming requests
//   - Trace ID surfaced to clients through the X-Trace-Id header
//   - Request ID correlation on server spans
//
// The exporter is configured by the embedding process; this package only
// creates spans through the globally registered tracer provider.
//
// Example usage:
//
//	import "eventscout/internal/observability/tracing"
//
//	func discover(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "discover-events")
//	    defer span.End()
//	    // ... run pipeline ...
//	}
package tracing
