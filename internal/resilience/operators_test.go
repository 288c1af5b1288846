package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventscout/internal/resilience/circuitbreaker"
	"eventscout/internal/resilience/retry"
)

func TestExecuteWithCircuitBreaker_Success(t *testing.T) {
	m, _, _ := newTestManager(t)

	calls := 0
	result, err := ExecuteWithCircuitBreaker(context.Background(), m, retry.ServiceCSE, func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
	assert.Equal(t, circuitbreaker.StateClosed, m.CircuitState(retry.ServiceCSE))
}

func TestExecuteWithCircuitBreaker_NoFallbackReturnsErrorWithoutRetry(t *testing.T) {
	m, clock, _ := newTestManager(t)

	boom := errors.New("connection refused")
	calls := 0
	_, err := ExecuteWithCircuitBreaker(context.Background(), m, retry.ServiceCSE, func(ctx context.Context) (string, error) {
		calls++
		return "", boom
	}, nil)

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.Sleeps())
	assert.Equal(t, 0, m.BudgetStatus(retry.ServiceCSE).Used)
}

func TestExecuteWithCircuitBreaker_FallbackOnFailure(t *testing.T) {
	m, _, buf := newTestManager(t)

	result, err := ExecuteWithCircuitBreaker(context.Background(), m, retry.ServiceCSE,
		func(ctx context.Context) (string, error) {
			return "", errors.New("connection refused")
		},
		func(ctx context.Context) (string, error) {
			return "from-fallback", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "from-fallback", result)
	assert.Equal(t, 1, countLogs(buf, "guarded call failed, stepping down to fallback"))
}

func TestExecuteWithCircuitBreaker_OpenCircuitSkipsOperation(t *testing.T) {
	m, _, _ := newTestManager(t, WithBreakerConfig(circuitbreaker.Config{
		Service:          "twitchy",
		FailureThreshold: 2,
		RecoveryTimeout:  time.Minute,
	}))

	failing := func(ctx context.Context) (string, error) {
		return "", errors.New("connection refused")
	}
	for i := 0; i < 2; i++ {
		_, err := ExecuteWithCircuitBreaker(context.Background(), m, "twitchy", failing, nil)
		require.Error(t, err)
	}
	require.Equal(t, circuitbreaker.StateOpen, m.CircuitState("twitchy"))

	invoked := false
	_, err := ExecuteWithCircuitBreaker(context.Background(), m, "twitchy", func(ctx context.Context) (string, error) {
		invoked = true
		return "", nil
	}, nil)

	require.ErrorIs(t, err, ErrCircuitOpen)
	var open *CircuitOpenError
	require.ErrorAs(t, err, &open)
	assert.Equal(t, "twitchy", open.Service)
	assert.False(t, invoked)

	// With a fallback the rejection is absorbed instead.
	result, err := ExecuteWithCircuitBreaker(context.Background(), m, "twitchy", failing, func(ctx context.Context) (string, error) {
		return "from-fallback", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "from-fallback", result)
}

func TestExecuteWithGracefulDegradation_FallbackRecovers(t *testing.T) {
	m, _, buf := newTestManager(t)

	primaryCalls := 0
	primary := func(ctx context.Context) (string, error) {
		primaryCalls++
		return "", errors.New("connection refused")
	}
	fallbackCalls := 0
	fallback := func(ctx context.Context) (string, error) {
		fallbackCalls++
		if fallbackCalls == 1 {
			return "", errors.New("connection refused")
		}
		return "fallback-ok", nil
	}

	result, err := ExecuteWithGracefulDegradation(context.Background(), m, retry.ServiceCSE, primary, fallback)

	require.NoError(t, err)
	assert.Equal(t, "fallback-ok", result)
	assert.Equal(t, 3, primaryCalls)
	assert.Equal(t, 2, fallbackCalls)
	assert.Equal(t, 1, countLogs(buf, "primary exhausted, stepping down to fallback"))

	// Both runs land in analytics: the exhausted primary and the
	// attempt-2 recovery of the fallback.
	snap := m.Analytics()
	assert.Equal(t, 5, snap.TotalAttempts)
	assert.Equal(t, 1, snap.Successes)
	assert.Equal(t, 4, snap.Failures)
	assert.Equal(t, map[string]int{"network_error": 4}, snap.ErrorKinds)
	assert.Equal(t, 2, snap.CompletedCalls)
	assert.InDelta(t, 2.5, snap.AvgAttemptsPerCall, 1e-9)
	assert.Equal(t, 3, m.BudgetStatus(retry.ServiceCSE).Used)
}

func TestExecuteWithGracefulDegradation_BothFail(t *testing.T) {
	m, _, buf := newTestManager(t)

	primaryErr := errors.New("connection refused")
	fallbackErr := errors.New("request timed out")

	_, err := ExecuteWithGracefulDegradation(context.Background(), m, retry.ServiceCSE,
		func(ctx context.Context) (string, error) { return "", primaryErr },
		func(ctx context.Context) (string, error) { return "", fallbackErr })

	// The fallback's error surfaces; the primary's rides along in logs.
	require.ErrorIs(t, err, fallbackErr)
	assert.False(t, errors.Is(err, primaryErr))
	assert.Equal(t, 1, countLogs(buf, "fallback exhausted after primary failure"))
}

func TestExecuteWithFallbackChain_ThirdLinkSucceeds(t *testing.T) {
	m, _, buf := newTestManager(t)

	aCalls, bCalls, cCalls := 0, 0, 0
	ops := []Operation[string]{
		func(ctx context.Context) (string, error) {
			aCalls++
			return "", errors.New("connection refused")
		},
		func(ctx context.Context) (string, error) {
			bCalls++
			return "", errors.New("request timed out")
		},
		func(ctx context.Context) (string, error) {
			cCalls++
			return "from-c", nil
		},
	}

	result, err := ExecuteWithFallbackChain(context.Background(), m, retry.ServiceCSE, ops)

	require.NoError(t, err)
	assert.Equal(t, "from-c", result)
	// Each link runs its own full retry orchestration first.
	assert.Equal(t, 3, aCalls)
	assert.Equal(t, 3, bCalls)
	assert.Equal(t, 1, cCalls)
	assert.Equal(t, 2, countLogs(buf, "chain link exhausted, stepping down"))
}

func TestExecuteWithFallbackChain_AllFail(t *testing.T) {
	m, _, buf := newTestManager(t)

	lastErr := errors.New("request timed out")
	ops := []Operation[string]{
		func(ctx context.Context) (string, error) { return "", errors.New("connection refused") },
		func(ctx context.Context) (string, error) { return "", lastErr },
	}

	_, err := ExecuteWithFallbackChain(context.Background(), m, retry.ServiceCSE, ops)

	require.ErrorIs(t, err, lastErr)
	assert.Equal(t, 1, countLogs(buf, "chain link exhausted, stepping down"))
}

func TestExecuteWithFallbackChain_NoOperations(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := ExecuteWithFallbackChain(context.Background(), m, retry.ServiceCSE, []Operation[string]{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one operation")
}

func TestExecuteWithFullRecovery_PrimarySucceeds(t *testing.T) {
	m, _, buf := newTestManager(t)

	calls := 0
	result, err := ExecuteWithFullRecovery(context.Background(), m, retry.ServiceCSE, func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	}, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
	assert.NotContains(t, buf.String(), "stepping down")
}

func TestExecuteWithFullRecovery_BreakerOpensMidRun(t *testing.T) {
	m, _, buf := newTestManager(t, WithBreakerConfig(circuitbreaker.Config{
		Service:          "flaky",
		FailureThreshold: 3,
		RecoveryTimeout:  time.Minute,
	}))

	opCalls := 0
	op := func(ctx context.Context) (string, error) {
		opCalls++
		return "", errors.New("connection refused")
	}
	fallbackCalls := 0
	fallback := func(ctx context.Context) (string, error) {
		fallbackCalls++
		return "from-fallback", nil
	}

	result, err := ExecuteWithFullRecovery(context.Background(), m, "flaky", op, fallback, nil)

	require.NoError(t, err)
	assert.Equal(t, "from-fallback", result)
	// The breaker opened after three consecutive failures, so the fourth
	// attempt never reached the operation.
	assert.Equal(t, 3, opCalls)
	assert.Equal(t, 1, fallbackCalls)
	assert.Equal(t, circuitbreaker.StateOpen, m.CircuitState("flaky"))
	assert.Equal(t, 1, countLogs(buf, "guarded primary exhausted, stepping down to fallback"))
}

func TestExecuteWithFullRecovery_FinalFallback(t *testing.T) {
	m, _, buf := newTestManager(t)

	validation := func(ctx context.Context) (string, error) {
		return "", errors.New("bad request")
	}

	result, err := ExecuteWithFullRecovery(context.Background(), m, retry.ServiceCSE,
		validation,
		validation,
		func(ctx context.Context) (string, error) {
			return "static", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "static", result)
	assert.Equal(t, 1, countLogs(buf, "guarded primary exhausted, stepping down to fallback"))
	assert.Equal(t, 1, countLogs(buf, "stepping down to final fallback"))
}

func TestExecuteWithFullRecovery_AllLayersFail(t *testing.T) {
	m, _, _ := newTestManager(t)

	finalErr := errors.New("even the cache is gone")
	_, err := ExecuteWithFullRecovery(context.Background(), m, retry.ServiceCSE,
		func(ctx context.Context) (string, error) { return "", errors.New("bad request") },
		func(ctx context.Context) (string, error) { return "", errors.New("bad request") },
		func(ctx context.Context) (string, error) { return "", finalErr })

	require.ErrorIs(t, err, finalErr)
}
