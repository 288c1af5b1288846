package auth

import "strings"

// PublicEndpoints defines endpoints that don't require authentication.
//
// Justification for each public endpoint:
//   - /healthz, /readyz, /livez: required for orchestration health checks
//   - /metrics: required for Prometheus scraping
//   - /runs: read-only discovery run history
//   - /resilience/analytics, /resilience/budget, /resilience/circuits:
//     read-only observability for dashboards and on-call debugging
//
// The reset endpoint (/resilience/reset) is intentionally absent: it
// mutates state and requires an admin token.
var PublicEndpoints = []string{
	"/healthz",
	"/readyz",
	"/livez",
	"/metrics",
	"/runs",
	"/runs/",
	"/resilience/analytics",
	"/resilience/budget",
	"/resilience/circuits",
}

// IsPublicEndpoint checks if a given path is a public endpoint.
//
// Matching logic:
//   - Endpoints ending with '/' use prefix matching (e.g. /runs/ matches /runs/42)
//   - Endpoints without '/' require an exact match, a trailing slash, or
//     query params only (e.g. /healthz matches /healthz?x=1 but not /healthz/detail)
func IsPublicEndpoint(path string) bool {
	for _, endpoint := range PublicEndpoints {
		if strings.HasSuffix(endpoint, "/") {
			if strings.HasPrefix(path, endpoint) {
				return true
			}
			continue
		}

		if path == endpoint {
			return true
		}
		if path == endpoint+"/" {
			return true
		}
		if strings.HasPrefix(path, endpoint+"?") {
			return true
		}
	}
	return false
}
