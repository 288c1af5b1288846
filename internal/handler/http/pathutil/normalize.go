package pathutil

import (
	"regexp"
	"strings"
)

// PathPattern represents a regex pattern and its corresponding normalized template.
type PathPattern struct {
	Pattern  *regexp.Regexp
	Template string
}

// pathPatterns defines the list of patterns for dynamic routes.
// Patterns are evaluated in order from most specific to least specific.
// Pre-compiled at initialization for optimal performance.
var pathPatterns = []*PathPattern{
	// Discovery run routes with IDs
	{Pattern: regexp.MustCompile(`^/runs/\d+$`), Template: "/runs/:id"},
}

// NormalizePath normalizes dynamic URL paths to prevent metrics label
// cardinality explosion. It converts paths with IDs (e.g., /runs/123) to
// template format (e.g., /runs/:id). Static paths remain unchanged.
//
// Examples:
//
//	NormalizePath("/runs/123")              // "/runs/:id"
//	NormalizePath("/runs")                  // "/runs" (unchanged)
//	NormalizePath("/resilience/analytics")  // "/resilience/analytics" (unchanged)
//	NormalizePath("/healthz")               // "/healthz" (unchanged)
//	NormalizePath("/unknown/path/123")      // "/unknown/path/123" (no match, return original)
//
// Query parameters and trailing slashes are handled:
//
//	NormalizePath("/runs/123?verbose=1")    // "/runs/:id"
//	NormalizePath("/runs/123/")             // "/runs/:id"
func NormalizePath(path string) string {
	// Strip query parameters if present
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}

	// Strip trailing slash if present (except for root path)
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}

	for _, p := range pathPatterns {
		if p.Pattern.MatchString(path) {
			return p.Template
		}
	}

	// No match found. Static paths like /healthz, /metrics, and the
	// resilience read endpoints pass through unchanged.
	return path
}
