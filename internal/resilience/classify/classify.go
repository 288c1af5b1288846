// Package classify maps arbitrary failures from external dependencies to a
// small set of error kinds that drive retry and fallback decisions.
// Classification is total: every error, including nil, yields exactly one
// kind and never a panic.
package classify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is the classification assigned to a failure. It is derived per
// attempt from the raw error and never stored on the error itself.
type Kind int

const (
	// KindUnknown is the fallback for errors matching no other kind.
	KindUnknown Kind = iota

	// KindNetwork covers connection-level failures: refused or reset
	// connections, DNS resolution failures, unreachable networks.
	KindNetwork

	// KindTimeout covers deadline and timeout failures, including the
	// per-attempt timeout imposed by the retry loop itself.
	KindTimeout

	// KindRateLimit covers quota and throttling rejections.
	KindRateLimit

	// KindAuthentication covers credential and permission failures.
	KindAuthentication

	// KindValidation covers malformed-request failures. These signal a
	// caller bug, not a transient fault, and are never retried.
	KindValidation
)

// String returns the snake_case name used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network_error"
	case KindTimeout:
		return "timeout_error"
	case KindRateLimit:
		return "rate_limit_error"
	case KindAuthentication:
		return "authentication_error"
	case KindValidation:
		return "validation_error"
	default:
		return "unknown_error"
	}
}

// ParseKind maps a snake_case kind name back to its Kind.
// Used by the config loader for per-kind policy overrides.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "network_error":
		return KindNetwork, true
	case "timeout_error":
		return KindTimeout, true
	case "rate_limit_error":
		return KindRateLimit, true
	case "authentication_error":
		return KindAuthentication, true
	case "validation_error":
		return KindValidation, true
	case "unknown_error":
		return KindUnknown, true
	default:
		return KindUnknown, false
	}
}

// Kinds lists every classification in match order.
func Kinds() []Kind {
	return []Kind{KindNetwork, KindTimeout, KindRateLimit, KindAuthentication, KindValidation, KindUnknown}
}

// HTTPError carries an HTTP status code so the classifier can use the code
// instead of parsing response text. Adapters wrap non-2xx responses in it
// before handing errors to the resilience layer.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Keyword tables are matched against the lowercased error message, in kind
// order. Timeout comes after network because timeout wording overlaps
// connection failures ("connection reset ... timed out").
var (
	networkKeywords = []string{
		"connection refused",
		"connection reset",
		"no such host",
		"network unreachable",
		"network error",
		"fetch failed",
	}
	timeoutKeywords = []string{
		"timeout",
		"timed out",
		"deadline exceeded",
	}
	rateLimitKeywords = []string{
		"rate limit",
		"too many requests",
		"quota exceeded",
	}
	authKeywords = []string{
		"unauthorized",
		"forbidden",
		"invalid api key",
		"authentication failed",
	}
	validationKeywords = []string{
		"validation",
		"invalid",
		"bad request",
	}
)

// Classify maps err to a Kind. Typed and coded checks run before message
// keywords so classification survives message changes in the underlying
// clients; keyword matching remains as the fallback for opaque failures.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	if kind, ok := classifyTyped(err); ok {
		return kind
	}

	if st, ok := status.FromError(err); ok {
		if kind, ok := classifyGRPCCode(st.Code()); ok {
			return kind
		}
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if kind, ok := classifyHTTPStatus(httpErr.StatusCode); ok {
			return kind
		}
	}

	return classifyMessage(err.Error())
}

// classifyTyped inspects well-known Go error types and values.
func classifyTyped(err error) (Kind, bool) {
	// Connection-level syscall failures
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return KindNetwork, true
	}

	// DNS resolution failures
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindNetwork, true
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ETIMEDOUT) {
		return KindTimeout, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout, true
	}

	return KindUnknown, false
}

// classifyGRPCCode maps gRPC status codes onto kinds.
func classifyGRPCCode(code codes.Code) (Kind, bool) {
	switch code {
	case codes.Unavailable:
		return KindNetwork, true
	case codes.DeadlineExceeded:
		return KindTimeout, true
	case codes.ResourceExhausted:
		return KindRateLimit, true
	case codes.Unauthenticated, codes.PermissionDenied:
		return KindAuthentication, true
	case codes.InvalidArgument:
		return KindValidation, true
	default:
		return KindUnknown, false
	}
}

// classifyHTTPStatus maps HTTP status codes onto kinds.
func classifyHTTPStatus(code int) (Kind, bool) {
	switch code {
	case 502, 503:
		return KindNetwork, true
	case 408, 504:
		return KindTimeout, true
	case 429:
		return KindRateLimit, true
	case 401, 403:
		return KindAuthentication, true
	case 400, 422:
		return KindValidation, true
	default:
		return KindUnknown, false
	}
}

// classifyMessage falls back to keyword matching on the error text.
func classifyMessage(msg string) Kind {
	lower := strings.ToLower(msg)

	if containsAny(lower, networkKeywords) {
		return KindNetwork
	}
	if containsAny(lower, timeoutKeywords) {
		return KindTimeout
	}
	if containsAny(lower, rateLimitKeywords) {
		return KindRateLimit
	}
	if containsAny(lower, authKeywords) {
		return KindAuthentication
	}
	if containsAny(lower, validationKeywords) {
		return KindValidation
	}

	return KindUnknown
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
