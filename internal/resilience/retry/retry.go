// Package retry defines retry policies and the backoff delay calculation
// used by the resilience layer. The attempt loop itself lives in the parent
// resilience package; this package is the pure policy/delay half so it can
// be tested without any orchestration.
package retry

import (
	"strings"
	"time"
)

// Known service identifiers used as policy, breaker, and budget keys.
// Callers may use any other string; unknown keys get the default policy
// under their own name.
const (
	ServiceDefault   = "default"
	ServiceFirecrawl = "firecrawl"
	ServiceCSE       = "cse"
	ServiceGemini    = "gemini"
	ServiceDatabase  = "database"
)

// Strategy selects how the raw delay grows with the attempt number.
type Strategy string

const (
	// StrategyExponential grows the delay as baseDelay * multiplier^(attempt-1).
	StrategyExponential Strategy = "exponential"

	// StrategyLinear grows the delay as baseDelay * attempt.
	StrategyLinear Strategy = "linear"

	// StrategyFixed always waits baseDelay.
	StrategyFixed Strategy = "fixed"
)

// ParseStrategy maps a config string to a Strategy. It accepts the bare
// names and the *_backoff / *_delay spellings used in older config files.
func ParseStrategy(s string) (Strategy, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "exponential", "exponential_backoff":
		return StrategyExponential, true
	case "linear", "linear_backoff":
		return StrategyLinear, true
	case "fixed", "fixed_delay", "constant":
		return StrategyFixed, true
	default:
		return "", false
	}
}

// Policy holds the retry configuration for one service or one error kind.
type Policy struct {
	// Service is the policy's service key ("default" for the catch-all).
	// Error-kind overrides leave it empty.
	Service string

	// MaxRetries is the number of retries after the initial attempt, so a
	// call makes at most MaxRetries+1 attempts.
	MaxRetries int

	// BaseDelay is the delay seed for the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the computed delay after jitter. Zero disables the cap.
	MaxDelay time.Duration

	// Multiplier is the growth factor for the exponential strategy.
	Multiplier float64

	// JitterFraction scales the uniform random perturbation applied to the
	// raw delay: a value of 0.2 means the delay moves by up to ±20%.
	JitterFraction float64

	// Timeout bounds each individual attempt. Zero means no per-attempt
	// timeout beyond the caller's context.
	Timeout time.Duration

	// Strategy selects the delay growth curve. Empty means exponential.
	Strategy Strategy
}

// DefaultPolicy is the catch-all policy for unknown service keys.
func DefaultPolicy() Policy {
	return Policy{
		Service:        ServiceDefault,
		MaxRetries:     3,
		BaseDelay:      1 * time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Timeout:        30 * time.Second,
		Strategy:       StrategyExponential,
	}
}

// FirecrawlPolicy tunes retries for the crawling service. Crawls are slow
// and the upstream flaps often, so waits start higher and jitter is wider.
func FirecrawlPolicy() Policy {
	return Policy{
		Service:        ServiceFirecrawl,
		MaxRetries:     3,
		BaseDelay:      2 * time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
		Timeout:        60 * time.Second,
		Strategy:       StrategyExponential,
	}
}

// CSEPolicy tunes retries for the search API, which is fast and billed per
// query, so fewer attempts with short waits.
func CSEPolicy() Policy {
	return Policy{
		Service:        ServiceCSE,
		MaxRetries:     2,
		BaseDelay:      1 * time.Second,
		MaxDelay:       10 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Timeout:        15 * time.Second,
		Strategy:       StrategyExponential,
	}
}

// GeminiPolicy tunes retries for LLM enhancement calls. Rate limits are the
// dominant failure, so waits start long and spread wide.
func GeminiPolicy() Policy {
	return Policy{
		Service:        ServiceGemini,
		MaxRetries:     2,
		BaseDelay:      5 * time.Second,
		MaxDelay:       60 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
		Timeout:        90 * time.Second,
		Strategy:       StrategyExponential,
	}
}

// DatabasePolicy tunes retries for Postgres. Transient connection drops
// recover quickly, so waits are short.
func DatabasePolicy() Policy {
	return Policy{
		Service:        ServiceDatabase,
		MaxRetries:     2,
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Timeout:        10 * time.Second,
		Strategy:       StrategyExponential,
	}
}

// ServicePolicies returns the built-in per-service policies keyed by
// service name.
func ServicePolicies() map[string]Policy {
	policies := []Policy{
		DefaultPolicy(),
		FirecrawlPolicy(),
		CSEPolicy(),
		GeminiPolicy(),
		DatabasePolicy(),
	}
	out := make(map[string]Policy, len(policies))
	for _, p := range policies {
		out[p.Service] = p
	}
	return out
}

// Option mutates a resolved policy. Options are the caller-level override
// in the default < service < caller precedence chain.
type Option func(*Policy)

// WithMaxRetries sets the number of retries after the initial attempt.
func WithMaxRetries(n int) Option {
	return func(p *Policy) {
		p.MaxRetries = n
	}
}

// WithBaseDelay sets the delay seed for the first retry.
func WithBaseDelay(d time.Duration) Option {
	return func(p *Policy) {
		p.BaseDelay = d
	}
}

// WithMaxDelay sets the post-jitter delay cap.
func WithMaxDelay(d time.Duration) Option {
	return func(p *Policy) {
		p.MaxDelay = d
	}
}

// WithMultiplier sets the exponential growth factor.
func WithMultiplier(m float64) Option {
	return func(p *Policy) {
		p.Multiplier = m
	}
}

// WithJitter sets the jitter fraction (0 disables jitter).
func WithJitter(fraction float64) Option {
	return func(p *Policy) {
		p.JitterFraction = fraction
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Policy) {
		p.Timeout = d
	}
}

// WithStrategy sets the delay growth strategy.
func WithStrategy(s Strategy) Option {
	return func(p *Policy) {
		p.Strategy = s
	}
}

// Apply returns a copy of p with the options applied.
func (p Policy) Apply(opts ...Option) Policy {
	for _, opt := range opts {
		opt(&p)
	}
	return p
}
