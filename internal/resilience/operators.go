package resilience

import (
	"context"
	"errors"
	"log/slog"

	"eventscout/internal/resilience/circuitbreaker"
	"eventscout/internal/resilience/retry"
)

// Operator names used in step-down logs and metrics.
const (
	operatorCircuitBreaker      = "circuit_breaker"
	operatorGracefulDegradation = "graceful_degradation"
	operatorFallbackChain       = "fallback_chain"
	operatorFullRecovery        = "full_recovery"
)

// ExecuteWithCircuitBreaker runs op once through the service's circuit
// breaker, without retries, so one breaker attempt is one underlying
// call. When the call fails and fallback is non-nil, the fallback runs
// once and its outcome is returned.
func ExecuteWithCircuitBreaker[T any](ctx context.Context, m *Manager, service string, op Operation[T], fallback Operation[T]) (T, error) {
	cb := m.breakers.Get(service)
	result, err := circuitbreaker.Do(cb, func() (T, error) {
		return op(ctx)
	})
	if err == nil {
		return result, nil
	}
	if errors.Is(err, ErrCircuitOpen) {
		m.metrics.AddCircuitRejection(service)
	}
	if fallback == nil {
		return result, err
	}

	m.metrics.AddFallback(service, operatorCircuitBreaker)
	m.logger.Warn("guarded call failed, stepping down to fallback",
		slog.String("service", service),
		slog.String("operator", operatorCircuitBreaker),
		slog.String("error", err.Error()))
	return fallback(ctx)
}

// ExecuteWithGracefulDegradation retries the primary to exhaustion, then
// retries the fallback. If both fail, the fallback's error is returned
// and the primary's error is kept in the log context.
func ExecuteWithGracefulDegradation[T any](ctx context.Context, m *Manager, service string, primary, fallback Operation[T], opts ...retry.Option) (T, error) {
	result, primaryErr := ExecuteWithRetry(ctx, m, service, primary, opts...)
	if primaryErr == nil {
		return result, nil
	}

	m.metrics.AddFallback(service, operatorGracefulDegradation)
	m.logger.Warn("primary exhausted, stepping down to fallback",
		slog.String("service", service),
		slog.String("operator", operatorGracefulDegradation),
		slog.String("error", primaryErr.Error()))

	result, fallbackErr := ExecuteWithRetry(ctx, m, service, fallback, opts...)
	if fallbackErr != nil {
		m.logger.Error("fallback exhausted after primary failure",
			slog.String("service", service),
			slog.String("operator", operatorGracefulDegradation),
			slog.String("error", fallbackErr.Error()),
			slog.String("primary_error", primaryErr.Error()))
		return result, fallbackErr
	}
	return result, nil
}

// ExecuteWithFallbackChain tries each operation in order through the
// retry orchestrator and returns the first success. Every exhausted link
// logs a step-down warning; if all links fail, the last error is
// returned.
func ExecuteWithFallbackChain[T any](ctx context.Context, m *Manager, service string, ops []Operation[T], opts ...retry.Option) (T, error) {
	var zero T
	if len(ops) == 0 {
		return zero, errors.New("fallback chain requires at least one operation")
	}

	var lastErr error
	for i, op := range ops {
		result, err := ExecuteWithRetry(ctx, m, service, op, opts...)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if i < len(ops)-1 {
			m.metrics.AddFallback(service, operatorFallbackChain)
			m.logger.Warn("chain link exhausted, stepping down",
				slog.String("service", service),
				slog.String("operator", operatorFallbackChain),
				slog.Int("link", i+1),
				slog.Int("links", len(ops)),
				slog.String("error", err.Error()))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return zero, lastErr
}

// ExecuteWithFullRecovery layers every defense around op: each attempt
// passes through the service's circuit breaker, attempts are retried per
// policy under the budget, an exhausted primary steps down to a retried
// fallback, and an exhausted fallback steps down to a single-shot final
// fallback. Each layer engages only after the previous layer's whole
// retry run is spent.
func ExecuteWithFullRecovery[T any](ctx context.Context, m *Manager, service string, op, fallback, finalFallback Operation[T], opts ...retry.Option) (T, error) {
	cb := m.breakers.Get(service)
	guarded := Operation[T](func(ctx context.Context) (T, error) {
		result, err := circuitbreaker.Do(cb, func() (T, error) {
			return op(ctx)
		})
		if errors.Is(err, ErrCircuitOpen) {
			m.metrics.AddCircuitRejection(service)
		}
		return result, err
	})

	result, err := ExecuteWithRetry(ctx, m, service, guarded, opts...)
	if err == nil {
		return result, nil
	}

	if fallback != nil {
		m.metrics.AddFallback(service, operatorFullRecovery)
		m.logger.Warn("guarded primary exhausted, stepping down to fallback",
			slog.String("service", service),
			slog.String("operator", operatorFullRecovery),
			slog.String("error", err.Error()))

		result, err = ExecuteWithRetry(ctx, m, service, fallback, opts...)
		if err == nil {
			return result, nil
		}
	}

	if finalFallback != nil {
		m.metrics.AddFallback(service, operatorFullRecovery)
		m.logger.Warn("stepping down to final fallback",
			slog.String("service", service),
			slog.String("operator", operatorFullRecovery),
			slog.String("error", err.Error()))
		return finalFallback(ctx)
	}

	return result, err
}
