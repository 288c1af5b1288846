package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"eventscout/internal/handler/http/pathutil"
	"eventscout/internal/handler/http/responsewriter"
	"eventscout/internal/observability/metrics"
)

// MetricsMiddleware records HTTP request metrics including duration, size,
// and status codes through the central metrics registry. Paths are
// normalized to prevent label cardinality explosion from ID-containing
// paths (e.g. /runs/123 becomes /runs/:id).
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.ActiveConnections.Inc()
		defer metrics.ActiveConnections.Dec()

		normalizedPath := pathutil.NormalizePath(r.URL.Path)

		wrapped := responsewriter.Wrap(w)

		start := time.Now()
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start)

		requestSize := 0
		if r.ContentLength > 0 {
			requestSize = int(r.ContentLength)
		}
		metrics.RecordHTTPRequest(
			r.Method,
			normalizedPath,
			strconv.Itoa(wrapped.StatusCode()),
			duration,
			requestSize,
			wrapped.BytesWritten(),
		)
	})
}

// MetricsHandler returns an HTTP handler for the Prometheus metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
