// Package circuitbreaker provides per-service circuit breakers for calls to
// external dependencies. It wraps github.com/sony/gobreaker: the breaker
// opens after a run of consecutive failures, rejects calls while open, and
// allows a single trial call once the recovery timeout has elapsed.
package circuitbreaker

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// State is the breaker state exposed to observability consumers.
type State int

const (
	// StateClosed passes calls through and counts failures.
	StateClosed State = iota
	// StateOpen rejects calls without invoking the operation.
	StateOpen
	// StateHalfOpen allows exactly one trial call.
	StateHalfOpen
)

// String returns the snake_case name used in logs, metrics, and JSON.
func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// ErrOpen is matched with errors.Is when a breaker rejects a call. The
// concrete error is always an *OpenError naming the service.
var ErrOpen = errors.New("circuit breaker open")

// OpenError reports a call rejected by an open breaker.
type OpenError struct {
	Service string
}

// Error implements the error interface.
func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker open for service %q", e.Service)
}

// Unwrap lets errors.Is match ErrOpen.
func (e *OpenError) Unwrap() error { return ErrOpen }

// Config holds the tunables for one service's breaker.
type Config struct {
	// Service is the breaker's service key.
	Service string

	// FailureThreshold is the number of consecutive failures that trips
	// the breaker from closed to open.
	FailureThreshold uint32

	// RecoveryTimeout is how long the breaker stays open before allowing
	// the half-open trial call.
	RecoveryTimeout time.Duration

	// OnStateChange, when set, observes every state transition. Used by
	// the registry to feed metrics.
	OnStateChange func(service string, from, to State)
}

// DefaultConfig is the breaker for unknown service keys.
func DefaultConfig(service string) Config {
	return Config{
		Service:          service,
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
	}
}

// FirecrawlConfig trips early: the crawling upstream flaps often and piling
// requests onto it makes recovery slower.
func FirecrawlConfig() Config {
	return Config{
		Service:          "firecrawl",
		FailureThreshold: 3,
		RecoveryTimeout:  90 * time.Second,
	}
}

// CSEConfig covers the search API.
func CSEConfig() Config {
	return Config{
		Service:          "cse",
		FailureThreshold: 4,
		RecoveryTimeout:  60 * time.Second,
	}
}

// GeminiConfig covers LLM enhancement calls, where open periods should
// outlast typical rate-limit windows.
func GeminiConfig() Config {
	return Config{
		Service:          "gemini",
		FailureThreshold: 4,
		RecoveryTimeout:  120 * time.Second,
	}
}

// DatabaseConfig tolerates more consecutive failures before opening since
// Postgres is generally reliable and short blips recover fast.
func DatabaseConfig() Config {
	return Config{
		Service:          "database",
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
	}
}

// ServiceConfigs returns the built-in per-service breaker configs keyed by
// service name.
func ServiceConfigs() map[string]Config {
	configs := []Config{
		DefaultConfig("default"),
		FirecrawlConfig(),
		CSEConfig(),
		GeminiConfig(),
		DatabaseConfig(),
	}
	out := make(map[string]Config, len(configs))
	for _, c := range configs {
		out[c.Service] = c
	}
	return out
}

// Metrics is a point-in-time view of one breaker.
type Metrics struct {
	Service              string    `json:"service"`
	State                string    `json:"state"`
	Requests             uint32    `json:"requests"`
	TotalSuccesses       uint32    `json:"total_successes"`
	TotalFailures        uint32    `json:"total_failures"`
	ConsecutiveSuccesses uint32    `json:"consecutive_successes"`
	ConsecutiveFailures  uint32    `json:"consecutive_failures"`
	LastFailureAt        time.Time `json:"last_failure_at,omitzero"`
}

// CircuitBreaker wraps one gobreaker instance for one service.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	service string

	mu            sync.Mutex
	lastFailureAt time.Time
}

// New creates a breaker from cfg. MaxRequests of 1 gives the single
// half-open trial; Interval of 0 keeps failure counts for the life of the
// closed state so the consecutive-failure threshold is exact.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = 60 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        cfg.Service,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("service", name),
				slog.String("from", fromGobreakerState(from).String()),
				slog.String("to", fromGobreakerState(to).String()))
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, fromGobreakerState(from), fromGobreakerState(to))
			}
		},
	}

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		service: cfg.Service,
	}
}

// Execute runs op through the breaker. Rejections while open (and the
// excess-concurrency rejection during the half-open trial) surface as an
// *OpenError; any other error is the operation's own, passed through
// verbatim.
func (cb *CircuitBreaker) Execute(op func() (any, error)) (any, error) {
	result, err := cb.breaker.Execute(op)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &OpenError{Service: cb.service}
		}
		cb.mu.Lock()
		cb.lastFailureAt = time.Now()
		cb.mu.Unlock()
	}
	return result, err
}

// Do runs a typed operation through cb. Go methods cannot be generic, so
// the typed entry point is a package-level function.
func Do[T any](cb *CircuitBreaker, op func() (T, error)) (T, error) {
	result, err := cb.Execute(func() (any, error) {
		return op()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	value, ok := result.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("circuit breaker %q returned unexpected type %T", cb.service, result)
	}
	return value, nil
}

// Service returns the breaker's service key.
func (cb *CircuitBreaker) Service() string {
	return cb.service
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	return fromGobreakerState(cb.breaker.State())
}

// IsOpen reports whether calls are currently rejected.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == StateOpen
}

// Metrics returns the breaker's counters and last failure time.
func (cb *CircuitBreaker) Metrics() Metrics {
	counts := cb.breaker.Counts()

	cb.mu.Lock()
	lastFailure := cb.lastFailureAt
	cb.mu.Unlock()

	return Metrics{
		Service:              cb.service,
		State:                cb.State().String(),
		Requests:             counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
		LastFailureAt:        lastFailure,
	}
}

func fromGobreakerState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
