package resilience

import (
	"time"

	"eventscout/internal/resilience/circuitbreaker"
	"eventscout/internal/resilience/classify"
)

// Metrics receives resilience events for export. Implementations must be
// safe for concurrent use. The kind argument is meaningful only for
// failed attempts.
type Metrics interface {
	ObserveAttempt(service string, success bool, kind classify.Kind, latency time.Duration)
	AddRetry(service string, kind classify.Kind)
	AddBudgetRejection(service, scope string)
	AddCircuitRejection(service string)
	AddFallback(service, operator string)
	SetCircuitState(service string, state circuitbreaker.State)
}

// NopMetrics discards every event. It is the default when no exporter is
// injected.
type NopMetrics struct{}

func (NopMetrics) ObserveAttempt(string, bool, classify.Kind, time.Duration) {}
func (NopMetrics) AddRetry(string, classify.Kind)                            {}
func (NopMetrics) AddBudgetRejection(string, string)                         {}
func (NopMetrics) AddCircuitRejection(string)                                {}
func (NopMetrics) AddFallback(string, string)                                {}
func (NopMetrics) SetCircuitState(string, circuitbreaker.State)              {}
