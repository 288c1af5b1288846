package resilience

import (
	"eventscout/internal/resilience/budget"
	"eventscout/internal/resilience/circuitbreaker"
)

// Terminal conditions that pre-empt execution entirely. Both are distinct
// from operation failures: the wrapped operation never ran, so its side
// effects never occurred. Callers match them with errors.Is.
var (
	// ErrBudgetExceeded means a retry was denied by the budget tracker.
	ErrBudgetExceeded = budget.ErrExceeded

	// ErrCircuitOpen means a call was rejected by an open circuit breaker.
	ErrCircuitOpen = circuitbreaker.ErrOpen
)

// BudgetExceededError carries the rejecting scope and when its window
// resets. Matched with errors.As.
type BudgetExceededError = budget.ExceededError

// CircuitOpenError names the service whose breaker rejected the call.
// Matched with errors.As.
type CircuitOpenError = circuitbreaker.OpenError
