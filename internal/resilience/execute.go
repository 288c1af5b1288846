package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"eventscout/internal/resilience/analytics"
	"eventscout/internal/resilience/budget"
	"eventscout/internal/resilience/classify"
	"eventscout/internal/resilience/retry"
)

// Operation is one unit of work against an external dependency. The
// context carries the per-attempt timeout, so operations should pass it
// through to whatever client they call.
type Operation[T any] func(ctx context.Context) (T, error)

// ExecuteWithRetry runs op under the service's retry policy, optionally
// adjusted by caller options. It owns all attempt bookkeeping: budget
// reservation, backoff, classification, analytics, and logging. Circuit
// breakers are layered on by the composition operators, never here.
//
// On exhaustion the last classified error is returned verbatim; budget
// denial returns an error matching ErrBudgetExceeded without running the
// operation again.
func ExecuteWithRetry[T any](ctx context.Context, m *Manager, service string, op Operation[T], opts ...retry.Option) (T, error) {
	var zero T

	policy := m.policyFor(service, opts...)
	callID := m.newCallID()
	log := m.logger.With(
		slog.String("service", policy.Service),
		slog.String("call_id", callID),
	)

	maxAttempts := policy.MaxRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retriesByKind := make(map[classify.Kind]int)

	var lastErr error
	var wait time.Duration
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := m.budget.Reserve(policy.Service); err != nil {
				m.metrics.AddBudgetRejection(policy.Service, budgetScope(err))
				log.Warn("retry denied by budget",
					slog.Int("attempt", attempt),
					slog.String("error", err.Error()))
				return zero, err
			}
			if err := m.clock.Sleep(ctx, wait); err != nil {
				log.Warn("backoff interrupted",
					slog.Int("attempt", attempt),
					slog.String("error", err.Error()))
				return zero, err
			}
		}

		start := m.clock.Now()
		result, err := runAttempt(ctx, policy.Timeout, op)
		latency := m.clock.Now().Sub(start)

		if err == nil {
			m.analytics.Record(analytics.Attempt{
				CallID:    callID,
				Service:   policy.Service,
				Number:    attempt,
				Timestamp: m.clock.Now(),
				Delay:     wait,
				Succeeded: true,
				Final:     true,
				Latency:   latency,
			})
			m.metrics.ObserveAttempt(policy.Service, true, classify.KindUnknown, latency)
			if attempt > 1 {
				log.Info("call recovered",
					slog.Int("attempt", attempt),
					slog.Duration("latency", latency))
			}
			return result, nil
		}

		lastErr = err
		kind := classify.Classify(err)
		willRetry := ctx.Err() == nil && m.shouldRetry(kind, attempt, maxAttempts, retriesByKind)

		m.analytics.Record(analytics.Attempt{
			CallID:    callID,
			Service:   policy.Service,
			Number:    attempt,
			Timestamp: m.clock.Now(),
			Delay:     wait,
			Kind:      kind,
			Final:     !willRetry,
			Latency:   latency,
		})
		m.metrics.ObserveAttempt(policy.Service, false, kind, latency)

		if !willRetry {
			log.Warn("giving up",
				slog.Int("attempts", attempt),
				slog.String("error_kind", kind.String()),
				slog.String("error", err.Error()))
			return zero, err
		}

		retriesByKind[kind]++
		m.metrics.AddRetry(policy.Service, kind)
		wait = retry.Delay(attempt, m.delayPolicy(policy, kind), m.rand)
		log.Info("retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", maxAttempts),
			slog.String("error_kind", kind.String()),
			slog.Duration("delay", wait),
			slog.String("error", err.Error()))
	}

	// Unreachable: the last iteration always returns above.
	return zero, lastErr
}

// runAttempt races the operation against the per-attempt timeout. The
// outcome channel is buffered so an operation that ignores cancellation
// still settles and gets collected instead of leaking a blocked
// goroutine.
func runAttempt[T any](ctx context.Context, timeout time.Duration, op Operation[T]) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type outcome struct {
		result T
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := op(ctx)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// shouldRetry applies the propagation policy: validation failures are
// never retried, authentication failures at most once, every kind stays
// under its ceiling, and the last allowed attempt never retries.
func (m *Manager) shouldRetry(kind classify.Kind, attempt, maxAttempts int, retriesByKind map[classify.Kind]int) bool {
	if attempt >= maxAttempts {
		return false
	}
	switch kind {
	case classify.KindValidation:
		return false
	case classify.KindAuthentication:
		if attempt > 1 {
			return false
		}
	}
	if kp, ok := m.kindPolicies[kind]; ok && retriesByKind[kind] >= kp.MaxRetries {
		return false
	}
	return true
}

// delayPolicy substitutes per-kind delay parameters into the service
// policy for the wait that follows a failure of that kind.
func (m *Manager) delayPolicy(p retry.Policy, kind classify.Kind) retry.Policy {
	kp, ok := m.kindPolicies[kind]
	if !ok {
		return p
	}
	if kp.BaseDelay > 0 {
		p.BaseDelay = kp.BaseDelay
	}
	if kp.MaxDelay > 0 {
		p.MaxDelay = kp.MaxDelay
	}
	return p
}

func budgetScope(err error) string {
	var exceeded *budget.ExceededError
	if errors.As(err, &exceeded) {
		return exceeded.Scope
	}
	return budget.ScopeService
}
