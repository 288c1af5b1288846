package resilience

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventscout/internal/resilience/budget"
	"eventscout/internal/resilience/classify"
	"eventscout/internal/resilience/retry"
)

type fixedRand float64

func (f fixedRand) Float64() float64 { return float64(f) }

// testClock advances instantly on sleep so backoff-heavy tests finish in
// microseconds.
type testClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	c.mu.Unlock()
	return nil
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *testClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// newTestManager wires a manager with an instant clock, zero jitter, and
// a JSON log buffer the tests can grep.
func newTestManager(t *testing.T, opts ...Option) (*Manager, *testClock, *bytes.Buffer) {
	t.Helper()
	clock := newTestClock()
	buf := &bytes.Buffer{}
	base := []Option{
		WithLogger(slog.New(slog.NewJSONHandler(buf, nil))),
		WithClock(clock),
		WithRand(fixedRand(0.5)),
	}
	return New(append(base, opts...)...), clock, buf
}

func countLogs(buf *bytes.Buffer, msg string) int {
	return strings.Count(buf.String(), `"msg":"`+msg+`"`)
}

func TestExecuteWithRetry_SucceedsFirstAttempt(t *testing.T) {
	m, clock, _ := newTestManager(t)

	calls := 0
	result, err := ExecuteWithRetry(context.Background(), m, retry.ServiceCSE, func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.Sleeps())

	snap := m.Analytics()
	assert.Equal(t, 1, snap.TotalAttempts)
	assert.Equal(t, 1, snap.Successes)
	assert.Equal(t, 1, snap.CompletedCalls)
}

func TestExecuteWithRetry_RetriesThenRecovers(t *testing.T) {
	m, clock, _ := newTestManager(t)

	calls := 0
	result, err := ExecuteWithRetry(context.Background(), m, retry.ServiceDefault, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection refused")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second}, clock.Sleeps())
	assert.Equal(t, 2, m.BudgetStatus(retry.ServiceDefault).Used)

	snap := m.Analytics()
	assert.Equal(t, 3, snap.TotalAttempts)
	assert.Equal(t, 1, snap.Successes)
	assert.Equal(t, 2, snap.Failures)
	assert.Equal(t, map[string]int{"network_error": 2}, snap.ErrorKinds)
	assert.InDelta(t, 3.0, snap.AvgAttemptsPerCall, 1e-9)
}

func TestExecuteWithRetry_ValidationNeverRetried(t *testing.T) {
	m, clock, _ := newTestManager(t)

	boom := errors.New("validation failed: title must not be empty")
	calls := 0
	_, err := ExecuteWithRetry(context.Background(), m, retry.ServiceGemini, func(ctx context.Context) (string, error) {
		calls++
		return "", boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.Sleeps())
	assert.Equal(t, 0, m.BudgetStatus(retry.ServiceGemini).Used)

	snap := m.Analytics()
	assert.Equal(t, map[string]int{"validation_error": 1}, snap.ErrorKinds)
}

func TestExecuteWithRetry_AuthenticationRetriedOnce(t *testing.T) {
	m, _, _ := newTestManager(t)

	calls := 0
	_, err := ExecuteWithRetry(context.Background(), m, retry.ServiceDefault, func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("unauthorized")
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestExecuteWithRetry_UnknownKindRetriedOnce(t *testing.T) {
	m, _, _ := newTestManager(t)

	calls := 0
	_, err := ExecuteWithRetry(context.Background(), m, retry.ServiceDefault, func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("splines failed to reticulate")
	})

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, map[string]int{"unknown_error": 2}, m.Analytics().ErrorKinds)
}

func TestExecuteWithRetry_KindCeilingBindsBeforeMaxRetries(t *testing.T) {
	m, _, _ := newTestManager(t)

	calls := 0
	_, err := ExecuteWithRetry(context.Background(), m, retry.ServiceDefault, func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("connection reset by peer")
	}, retry.WithMaxRetries(5))

	require.Error(t, err)
	// Network failures may trigger at most three retries per call, even
	// though the policy would allow five.
	assert.Equal(t, 4, calls)
}

func TestExecuteWithRetry_RateLimitWaitsLonger(t *testing.T) {
	m, clock, _ := newTestManager(t)

	calls := 0
	_, err := ExecuteWithRetry(context.Background(), m, retry.ServiceDefault, func(ctx context.Context) (string, error) {
		calls++
		return "", &classify.HTTPError{StatusCode: 429, Message: "too many requests"}
	})

	require.Error(t, err)
	var httpErr *classify.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 3, calls)
	// Rate-limit backoff substitutes the 5s base for the service's 1s.
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, clock.Sleeps())
}

func TestExecuteWithRetry_BudgetExhaustionPreempts(t *testing.T) {
	m, clock, _ := newTestManager(t, WithBudgetConfig(budget.Config{
		ServiceLimit:  2,
		ServiceWindow: time.Minute,
		GlobalLimit:   100,
		GlobalWindow:  time.Hour,
	}))

	boom := errors.New("connection refused")
	calls := 0
	op := func(ctx context.Context) (string, error) {
		calls++
		return "", boom
	}

	_, err := ExecuteWithRetry(context.Background(), m, retry.ServiceFirecrawl, op, retry.WithMaxRetries(5))

	require.ErrorIs(t, err, ErrBudgetExceeded)
	var exceeded *BudgetExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, retry.ServiceFirecrawl, exceeded.Service)
	// Initial attempt plus the two budgeted retries; the third retry was
	// denied without invoking the operation.
	assert.Equal(t, 3, calls)
	// Budget denial is distinguishable from the operation's own failure.
	assert.False(t, errors.Is(err, boom))

	// Once the window lapses the operation is consulted again.
	clock.Advance(61 * time.Second)
	calls = 0
	_, err = ExecuteWithRetry(context.Background(), m, retry.ServiceFirecrawl, op, retry.WithMaxRetries(1))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestExecuteWithRetry_TimeoutRace(t *testing.T) {
	m, _, _ := newTestManager(t)

	var calls atomic.Int32
	_, err := ExecuteWithRetry(context.Background(), m, retry.ServiceDefault, func(ctx context.Context) (string, error) {
		calls.Add(1)
		select {
		case <-time.After(500 * time.Millisecond):
			return "late", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}, retry.WithTimeout(20*time.Millisecond))

	require.ErrorIs(t, err, context.DeadlineExceeded)
	// Timeouts may trigger at most two retries per call.
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, map[string]int{"timeout_error": 3}, m.Analytics().ErrorKinds)
}

func TestExecuteWithRetry_TimeoutWinsOverStubbornOperation(t *testing.T) {
	m, _, _ := newTestManager(t)

	started := time.Now()
	_, err := ExecuteWithRetry(context.Background(), m, retry.ServiceDefault, func(ctx context.Context) (string, error) {
		time.Sleep(400 * time.Millisecond) // ignores cancellation on purpose
		return "late", nil
	}, retry.WithTimeout(25*time.Millisecond), retry.WithMaxRetries(0))

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 400*time.Millisecond)
}

type cancelingClock struct {
	Clock
	cancel context.CancelFunc
}

func (c *cancelingClock) Sleep(ctx context.Context, d time.Duration) error {
	c.cancel()
	return ctx.Err()
}

func TestExecuteWithRetry_CanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := New(
		WithLogger(slog.New(slog.NewJSONHandler(io.Discard, nil))),
		WithClock(&cancelingClock{Clock: newTestClock(), cancel: cancel}),
		WithRand(fixedRand(0.5)),
	)

	calls := 0
	_, err := ExecuteWithRetry(ctx, m, retry.ServiceDefault, func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("connection refused")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestExecuteWithRetry_CallerOverrideDisablesRetries(t *testing.T) {
	m, clock, _ := newTestManager(t)

	calls := 0
	_, err := ExecuteWithRetry(context.Background(), m, retry.ServiceFirecrawl, func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("connection refused")
	}, retry.WithMaxRetries(0))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, clock.Sleeps())
}

func TestExecuteWithRetry_UnknownServiceUsesDefaultPolicy(t *testing.T) {
	m, clock, _ := newTestManager(t)

	calls := 0
	result, err := ExecuteWithRetry(context.Background(), m, "mystery", func(ctx context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("connection refused")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	// Default policy delays, but budget and analytics keyed by the
	// caller's own service name.
	assert.Equal(t, []time.Duration{1 * time.Second}, clock.Sleeps())
	assert.Equal(t, 1, m.BudgetStatus("mystery").Used)
}

func TestExecuteWithRetry_LogsRetriesAndGiveUps(t *testing.T) {
	m, _, buf := newTestManager(t)

	_, err := ExecuteWithRetry(context.Background(), m, retry.ServiceCSE, func(ctx context.Context) (string, error) {
		return "", errors.New("connection refused")
	})

	require.Error(t, err)
	assert.Equal(t, 2, countLogs(buf, "retrying"))
	assert.Equal(t, 1, countLogs(buf, "giving up"))
}
