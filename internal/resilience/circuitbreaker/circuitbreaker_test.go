package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

func TestNew_InitialState(t *testing.T) {
	cb := New(Config{
		Service:          "firecrawl",
		FailureThreshold: 3,
		RecoveryTimeout:  1 * time.Second,
	})

	if cb == nil {
		t.Fatal("expected circuit breaker, got nil")
	}
	if cb.Service() != "firecrawl" {
		t.Errorf("expected service='firecrawl', got %q", cb.Service())
	}
	if cb.State() != StateClosed {
		t.Errorf("expected initial state=closed, got %v", cb.State())
	}
}

func TestCircuitBreaker_Execute_Success(t *testing.T) {
	cb := New(Config{
		Service:          "cse",
		FailureThreshold: 3,
		RecoveryTimeout:  1 * time.Second,
	})

	result, err := cb.Execute(func() (any, error) {
		return "success", nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if result != "success" {
		t.Errorf("expected result='success', got %v", result)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected state=closed after success, got %v", cb.State())
	}
}

func TestCircuitBreaker_Execute_FailurePassesThrough(t *testing.T) {
	cb := New(Config{
		Service:          "cse",
		FailureThreshold: 3,
		RecoveryTimeout:  1 * time.Second,
	})

	testErr := errors.New("upstream exploded")
	result, err := cb.Execute(func() (any, error) {
		return nil, testErr
	})

	if err != testErr {
		t.Errorf("expected the operation's own error, got %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %v", result)
	}
}

func TestCircuitBreaker_OpensAfterExactlyThresholdFailures(t *testing.T) {
	cb := New(Config{
		Service:          "firecrawl",
		FailureThreshold: 3,
		RecoveryTimeout:  1 * time.Second,
	})

	testErr := errors.New("scrape failed")

	// threshold-1 failures leave the breaker closed.
	for i := 0; i < 2; i++ {
		_, _ = cb.Execute(func() (any, error) { return nil, testErr })
		if cb.State() != StateClosed {
			t.Fatalf("after %d failures expected closed, got %v", i+1, cb.State())
		}
	}

	// The threshold-th consecutive failure trips it.
	_, _ = cb.Execute(func() (any, error) { return nil, testErr })
	if cb.State() != StateOpen {
		t.Fatalf("after 3 consecutive failures expected open, got %v", cb.State())
	}
	if !cb.IsOpen() {
		t.Error("expected IsOpen()=true")
	}
}

func TestCircuitBreaker_SuccessBreaksTheRun(t *testing.T) {
	cb := New(Config{
		Service:          "firecrawl",
		FailureThreshold: 3,
		RecoveryTimeout:  1 * time.Second,
	})

	testErr := errors.New("scrape failed")

	_, _ = cb.Execute(func() (any, error) { return nil, testErr })
	_, _ = cb.Execute(func() (any, error) { return nil, testErr })
	_, _ = cb.Execute(func() (any, error) { return "ok", nil })
	_, _ = cb.Execute(func() (any, error) { return nil, testErr })
	_, _ = cb.Execute(func() (any, error) { return nil, testErr })

	// Only consecutive failures count toward the threshold.
	if cb.State() != StateClosed {
		t.Errorf("expected closed after a success reset the run, got %v", cb.State())
	}
}

func TestCircuitBreaker_OpenRejectsWithoutInvoking(t *testing.T) {
	cb := New(Config{
		Service:          "gemini",
		FailureThreshold: 2,
		RecoveryTimeout:  10 * time.Second,
	})

	testErr := errors.New("model overloaded")
	_, _ = cb.Execute(func() (any, error) { return nil, testErr })
	_, _ = cb.Execute(func() (any, error) { return nil, testErr })

	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %v", cb.State())
	}

	invoked := false
	_, err := cb.Execute(func() (any, error) {
		invoked = true
		return "should not run", nil
	})

	if invoked {
		t.Error("operation must not be invoked while the breaker is open")
	}
	if !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}

	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("expected *OpenError, got %T", err)
	}
	if openErr.Service != "gemini" {
		t.Errorf("expected service='gemini' in error, got %q", openErr.Service)
	}
}

func TestCircuitBreaker_HalfOpenTrialSuccessCloses(t *testing.T) {
	cb := New(Config{
		Service:          "cse",
		FailureThreshold: 2,
		RecoveryTimeout:  100 * time.Millisecond,
	})

	testErr := errors.New("search failed")
	_, _ = cb.Execute(func() (any, error) { return nil, testErr })
	_, _ = cb.Execute(func() (any, error) { return nil, testErr })

	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %v", cb.State())
	}

	// Wait out the recovery timeout, then the single trial call runs.
	time.Sleep(150 * time.Millisecond)

	result, err := cb.Execute(func() (any, error) {
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("trial call failed: %v", err)
	}
	if result != "recovered" {
		t.Errorf("expected trial result, got %v", result)
	}

	if cb.State() != StateClosed {
		t.Errorf("expected closed after trial success, got %v", cb.State())
	}
	if got := cb.Metrics().ConsecutiveFailures; got != 0 {
		t.Errorf("expected failure count reset to 0, got %d", got)
	}
}

func TestCircuitBreaker_HalfOpenTrialFailureReopens(t *testing.T) {
	cb := New(Config{
		Service:          "cse",
		FailureThreshold: 2,
		RecoveryTimeout:  100 * time.Millisecond,
	})

	testErr := errors.New("search failed")
	_, _ = cb.Execute(func() (any, error) { return nil, testErr })
	_, _ = cb.Execute(func() (any, error) { return nil, testErr })

	time.Sleep(150 * time.Millisecond)

	_, err := cb.Execute(func() (any, error) { return nil, testErr })
	if err != testErr {
		t.Fatalf("expected the trial's own error, got %v", err)
	}

	if cb.State() != StateOpen {
		t.Errorf("expected open again after trial failure, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenAllowsSingleTrial(t *testing.T) {
	cb := New(Config{
		Service:          "firecrawl",
		FailureThreshold: 2,
		RecoveryTimeout:  100 * time.Millisecond,
	})

	testErr := errors.New("scrape failed")
	_, _ = cb.Execute(func() (any, error) { return nil, testErr })
	_, _ = cb.Execute(func() (any, error) { return nil, testErr })

	time.Sleep(150 * time.Millisecond)

	// Hold the trial call open and verify a concurrent call is rejected.
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, err := cb.Execute(func() (any, error) {
			close(started)
			<-release
			return "ok", nil
		})
		done <- err
	}()

	<-started
	_, err := cb.Execute(func() (any, error) {
		return "second trial", nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Errorf("expected concurrent half-open call to be rejected with ErrOpen, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("trial call failed: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed after trial success, got %v", cb.State())
	}
}

func TestDo_TypedResult(t *testing.T) {
	cb := New(Config{
		Service:          "database",
		FailureThreshold: 3,
		RecoveryTimeout:  1 * time.Second,
	})

	got, err := Do(cb, func() (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != 42 {
		t.Errorf("expected 42, got %d", got)
	}

	testErr := errors.New("query failed")
	_, err = Do(cb, func() (int, error) {
		return 0, testErr
	})
	if err != testErr {
		t.Errorf("expected the operation's error, got %v", err)
	}
}

func TestCircuitBreaker_Metrics(t *testing.T) {
	cb := New(Config{
		Service:          "database",
		FailureThreshold: 5,
		RecoveryTimeout:  1 * time.Second,
	})

	_, _ = cb.Execute(func() (any, error) { return "ok", nil })
	_, _ = cb.Execute(func() (any, error) { return nil, errors.New("boom") })

	m := cb.Metrics()
	if m.Service != "database" {
		t.Errorf("expected service='database', got %q", m.Service)
	}
	if m.State != "closed" {
		t.Errorf("expected state='closed', got %q", m.State)
	}
	if m.Requests != 2 {
		t.Errorf("expected 2 requests, got %d", m.Requests)
	}
	if m.TotalSuccesses != 1 || m.TotalFailures != 1 {
		t.Errorf("expected 1 success and 1 failure, got %d/%d", m.TotalSuccesses, m.TotalFailures)
	}
	if m.ConsecutiveFailures != 1 {
		t.Errorf("expected 1 consecutive failure, got %d", m.ConsecutiveFailures)
	}
	if m.LastFailureAt.IsZero() {
		t.Error("expected LastFailureAt to be recorded")
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half_open"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestServiceConfigs(t *testing.T) {
	configs := ServiceConfigs()

	for _, service := range []string{"default", "firecrawl", "cse", "gemini", "database"} {
		cfg, ok := configs[service]
		if !ok {
			t.Errorf("missing breaker config for %q", service)
			continue
		}
		if cfg.FailureThreshold == 0 {
			t.Errorf("config for %q has zero threshold", service)
		}
		if cfg.RecoveryTimeout <= 0 {
			t.Errorf("config for %q has no recovery timeout", service)
		}
	}

	// The crawler trips sooner than the database.
	if configs["firecrawl"].FailureThreshold >= configs["database"].FailureThreshold {
		t.Error("expected firecrawl to tolerate fewer consecutive failures than database")
	}
}
