package retry

import (
	"time"

	"eventscout/internal/resilience/classify"
)

// KindPolicy bounds how many retries failures of one error kind may
// trigger within a single logical call, independent of the service
// policy's overall retry count, and can substitute delay parameters for
// that kind.
type KindPolicy struct {
	// MaxRetries is the retry ceiling for this kind within one call.
	MaxRetries int

	// BaseDelay, when positive, replaces the service policy's base delay
	// for waits that follow a failure of this kind.
	BaseDelay time.Duration

	// MaxDelay, when positive, replaces the service policy's delay cap.
	MaxDelay time.Duration
}

// DefaultKindPolicies returns the built-in per-kind ceilings. Validation
// failures signal a caller bug and are never retried. Authentication
// failures get a single retry to absorb token-refresh races. Rate limits
// back off much longer than the service policy otherwise would.
func DefaultKindPolicies() map[classify.Kind]KindPolicy {
	return map[classify.Kind]KindPolicy{
		classify.KindNetwork:        {MaxRetries: 3},
		classify.KindTimeout:        {MaxRetries: 2},
		classify.KindRateLimit:      {MaxRetries: 2, BaseDelay: 5 * time.Second, MaxDelay: 60 * time.Second},
		classify.KindAuthentication: {MaxRetries: 1},
		classify.KindValidation:     {MaxRetries: 0},
		classify.KindUnknown:        {MaxRetries: 1},
	}
}
