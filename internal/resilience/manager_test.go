package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventscout/internal/resilience/circuitbreaker"
	"eventscout/internal/resilience/classify"
	"eventscout/internal/resilience/retry"
)

func TestNew_Defaults(t *testing.T) {
	m := New()

	for _, service := range []string{
		retry.ServiceDefault,
		retry.ServiceFirecrawl,
		retry.ServiceCSE,
		retry.ServiceGemini,
		retry.ServiceDatabase,
	} {
		p, ok := m.policies[service]
		require.True(t, ok, "missing policy for %s", service)
		assert.Equal(t, service, p.Service)
	}
	assert.Len(t, m.kindPolicies, len(classify.Kinds()))

	snap := m.Analytics()
	assert.Equal(t, 0, snap.TotalAttempts)
}

func TestManager_PolicyForMergesCallerOptions(t *testing.T) {
	m := New()

	p := m.policyFor(retry.ServiceFirecrawl, retry.WithMaxRetries(7), retry.WithBaseDelay(3*time.Second))

	base := retry.FirecrawlPolicy()
	assert.Equal(t, retry.ServiceFirecrawl, p.Service)
	assert.Equal(t, 7, p.MaxRetries)
	assert.Equal(t, 3*time.Second, p.BaseDelay)
	// Untouched fields keep the service policy's values.
	assert.Equal(t, base.MaxDelay, p.MaxDelay)
	assert.Equal(t, base.JitterFraction, p.JitterFraction)

	// The stored policy is unchanged.
	assert.Equal(t, base, m.policies[retry.ServiceFirecrawl])
}

func TestManager_PolicyForUnknownService(t *testing.T) {
	m := New()

	p := m.policyFor("mystery")

	assert.Equal(t, "mystery", p.Service)
	def := retry.DefaultPolicy()
	assert.Equal(t, def.MaxRetries, p.MaxRetries)
	assert.Equal(t, def.BaseDelay, p.BaseDelay)
}

func TestManager_WithPolicyOption(t *testing.T) {
	custom := retry.Policy{
		MaxRetries:     1,
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       time.Second,
		Multiplier:     2.0,
		JitterFraction: 0,
		Strategy:       retry.StrategyFixed,
	}
	m := New(WithPolicy("webhook", custom))

	p := m.policyFor("webhook")
	assert.Equal(t, "webhook", p.Service)
	assert.Equal(t, retry.StrategyFixed, p.Strategy)
	assert.Equal(t, 1, p.MaxRetries)
}

func TestManager_BudgetAccessors(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := ExecuteWithRetry(context.Background(), m, retry.ServiceCSE, func(ctx context.Context) (string, error) {
		return "", errors.New("connection refused")
	})
	require.Error(t, err)

	status := m.BudgetStatus(retry.ServiceCSE)
	assert.Equal(t, 2, status.Used)
	assert.Equal(t, status.Limit-2, status.Remaining)

	global := m.GlobalBudgetStatus()
	assert.Equal(t, 2, global.Used)

	report := m.BudgetReport()
	require.Contains(t, report, retry.ServiceCSE)
	assert.Equal(t, 2, report[retry.ServiceCSE].Used)

	m.ResetBudget()
	assert.Equal(t, 0, m.BudgetStatus(retry.ServiceCSE).Used)
	assert.Equal(t, 0, m.GlobalBudgetStatus().Used)
}

func TestManager_CircuitAccessorsAndReset(t *testing.T) {
	m, _, _ := newTestManager(t, WithBreakerConfig(circuitbreaker.Config{
		Service:          "twitchy",
		FailureThreshold: 2,
		RecoveryTimeout:  time.Minute,
	}))

	assert.Equal(t, circuitbreaker.StateClosed, m.CircuitState("never-used"))

	failing := func(ctx context.Context) (string, error) {
		return "", errors.New("connection refused")
	}
	for i := 0; i < 2; i++ {
		_, _ = ExecuteWithCircuitBreaker(context.Background(), m, "twitchy", failing, nil)
	}
	require.Equal(t, circuitbreaker.StateOpen, m.CircuitState("twitchy"))

	metrics := m.CircuitMetrics("twitchy")
	assert.Equal(t, "twitchy", metrics.Service)
	assert.Equal(t, "open", metrics.State)

	all := m.AllCircuitMetrics()
	require.Contains(t, all, "twitchy")

	m.ResetCircuitBreaker("twitchy")
	assert.Equal(t, circuitbreaker.StateClosed, m.CircuitState("twitchy"))
	assert.Equal(t, uint32(0), m.CircuitMetrics("twitchy").ConsecutiveFailures)
}

func TestManager_ResetAllCircuitBreakers(t *testing.T) {
	m, _, _ := newTestManager(t,
		WithBreakerConfigs(map[string]circuitbreaker.Config{
			"a": {FailureThreshold: 1, RecoveryTimeout: time.Minute},
			"b": {FailureThreshold: 1, RecoveryTimeout: time.Minute},
		}),
	)

	failing := func(ctx context.Context) (string, error) {
		return "", errors.New("connection refused")
	}
	for _, service := range []string{"a", "b"} {
		_, _ = ExecuteWithCircuitBreaker(context.Background(), m, service, failing, nil)
		require.Equal(t, circuitbreaker.StateOpen, m.CircuitState(service))
	}

	m.ResetAllCircuitBreakers()

	for _, service := range []string{"a", "b"} {
		assert.Equal(t, circuitbreaker.StateClosed, m.CircuitState(service))
	}
}

func TestManager_ResetAnalytics(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, _ = ExecuteWithRetry(context.Background(), m, retry.ServiceCSE, func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	require.Equal(t, 1, m.Analytics().TotalAttempts)

	m.ResetAnalytics()
	assert.Equal(t, 0, m.Analytics().TotalAttempts)
}

// spyMetrics records every event so the manager's wiring can be checked
// end to end.
type spyMetrics struct {
	attempts     int
	retries      int
	budgetDenied int
	fallbacks    int
	states       map[string]circuitbreaker.State
}

func newSpyMetrics() *spyMetrics {
	return &spyMetrics{states: make(map[string]circuitbreaker.State)}
}

func (s *spyMetrics) ObserveAttempt(string, bool, classify.Kind, time.Duration) { s.attempts++ }
func (s *spyMetrics) AddRetry(string, classify.Kind)                            { s.retries++ }
func (s *spyMetrics) AddBudgetRejection(string, string)                         { s.budgetDenied++ }
func (s *spyMetrics) AddCircuitRejection(string)                                {}
func (s *spyMetrics) AddFallback(string, string)                                { s.fallbacks++ }
func (s *spyMetrics) SetCircuitState(service string, state circuitbreaker.State) {
	s.states[service] = state
}

func TestManager_MetricsWiring(t *testing.T) {
	spy := newSpyMetrics()
	m, _, _ := newTestManager(t,
		WithMetrics(spy),
		WithBreakerConfig(circuitbreaker.Config{
			Service:          "twitchy",
			FailureThreshold: 1,
			RecoveryTimeout:  time.Minute,
		}),
	)

	_, err := ExecuteWithGracefulDegradation(context.Background(), m, retry.ServiceCSE,
		func(ctx context.Context) (string, error) { return "", errors.New("connection refused") },
		func(ctx context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)

	assert.Equal(t, 4, spy.attempts)  // 3 failed primary + 1 fallback success
	assert.Equal(t, 2, spy.retries)   // both waits belong to the primary
	assert.Equal(t, 1, spy.fallbacks) // one step-down

	// Breaker transitions reach the gauge through the registry hook.
	_, _ = ExecuteWithCircuitBreaker(context.Background(), m,
		"twitchy",
		func(ctx context.Context) (string, error) { return "", errors.New("connection refused") },
		nil)
	assert.Equal(t, circuitbreaker.StateOpen, spy.states["twitchy"])
}
