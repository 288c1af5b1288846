// Package config loads optional file-based configuration for the
// resilience layer. Scalar service settings come from environment
// variables (see pkg/config); the YAML file carries the structured
// per-service policy, budget, and breaker tables that do not fit
// flat env vars.
package config

import (
	"fmt"
	"os"
	"time"

	"eventscout/internal/resilience"
	"eventscout/internal/resilience/budget"
	"eventscout/internal/resilience/circuitbreaker"
	"eventscout/internal/resilience/classify"
	"eventscout/internal/resilience/retry"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath is the environment variable naming the YAML file.
const EnvConfigPath = "RESILIENCE_CONFIG_PATH"

// Duration wraps time.Duration so YAML values can be written as
// strings like "30s" or "1h30m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// ResilienceConfig mirrors the optional YAML file. Every field is
// optional: set fields override the built-in defaults, unset fields
// inherit them.
type ResilienceConfig struct {
	Analytics  AnalyticsSection             `yaml:"analytics"`
	Budget     BudgetSection                `yaml:"budget"`
	Policies   map[string]PolicySection     `yaml:"policies"`
	ErrorKinds map[string]KindPolicySection `yaml:"error_kinds"`
	Breakers   map[string]BreakerSection    `yaml:"breakers"`
}

// AnalyticsSection overrides the attempt history size.
type AnalyticsSection struct {
	HistorySize *int `yaml:"history_size"`
}

// BudgetSection overrides the retry budget limits and windows.
type BudgetSection struct {
	ServiceLimit  *int      `yaml:"service_limit"`
	ServiceWindow *Duration `yaml:"service_window"`
	GlobalLimit   *int      `yaml:"global_limit"`
	GlobalWindow  *Duration `yaml:"global_window"`
}

// PolicySection overrides a per-service retry policy. Unset fields
// inherit the service's built-in policy (or the default policy for
// services without one).
type PolicySection struct {
	MaxRetries *int      `yaml:"max_retries"`
	BaseDelay  *Duration `yaml:"base_delay"`
	MaxDelay   *Duration `yaml:"max_delay"`
	Multiplier *float64  `yaml:"multiplier"`
	Jitter     *float64  `yaml:"jitter"`
	Timeout    *Duration `yaml:"timeout"`
	Strategy   *string   `yaml:"strategy"`
}

// KindPolicySection overrides a per-error-kind retry ceiling.
type KindPolicySection struct {
	MaxRetries *int      `yaml:"max_retries"`
	BaseDelay  *Duration `yaml:"base_delay"`
	MaxDelay   *Duration `yaml:"max_delay"`
}

// BreakerSection overrides a per-service circuit breaker.
type BreakerSection struct {
	FailureThreshold *uint32   `yaml:"failure_threshold"`
	RecoveryTimeout  *Duration `yaml:"recovery_timeout"`
}

// LoadResilienceConfig loads and validates the YAML file at path.
// The path parameter is expected to come from a trusted source
// (environment variable or command-line argument).
func LoadResilienceConfig(path string) (*ResilienceConfig, error) {
	// #nosec G304 -- path is provided by trusted source (env var or CLI arg), not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg ResilienceConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadResilienceFromEnv loads the file named by RESILIENCE_CONFIG_PATH.
// Returns (nil, nil) when the variable is unset; built-in defaults apply.
func LoadResilienceFromEnv() (*ResilienceConfig, error) {
	path := os.Getenv(EnvConfigPath)
	if path == "" {
		return nil, nil
	}
	return LoadResilienceConfig(path)
}

// Validate checks every set field for sanity. Unset fields are not
// validated since defaults are known good.
func (c *ResilienceConfig) Validate() error {
	if c.Analytics.HistorySize != nil && *c.Analytics.HistorySize < 1 {
		return fmt.Errorf("analytics history_size must be positive")
	}

	if err := c.Budget.validate(); err != nil {
		return err
	}

	for service, p := range c.Policies {
		if err := p.validate(service); err != nil {
			return err
		}
	}

	for name, kp := range c.ErrorKinds {
		if _, ok := classify.ParseKind(name); !ok {
			return fmt.Errorf("unknown error kind %q", name)
		}
		if kp.MaxRetries != nil && *kp.MaxRetries < 0 {
			return fmt.Errorf("error kind %s: max_retries cannot be negative", name)
		}
		if kp.BaseDelay != nil && *kp.BaseDelay <= 0 {
			return fmt.Errorf("error kind %s: base_delay must be positive", name)
		}
		if kp.MaxDelay != nil && *kp.MaxDelay <= 0 {
			return fmt.Errorf("error kind %s: max_delay must be positive", name)
		}
	}

	for service, b := range c.Breakers {
		if b.FailureThreshold != nil && *b.FailureThreshold < 1 {
			return fmt.Errorf("breaker %s: failure_threshold must be at least 1", service)
		}
		if b.RecoveryTimeout != nil && *b.RecoveryTimeout <= 0 {
			return fmt.Errorf("breaker %s: recovery_timeout must be positive", service)
		}
	}

	return nil
}

func (b BudgetSection) validate() error {
	if b.ServiceLimit != nil && *b.ServiceLimit < 1 {
		return fmt.Errorf("budget service_limit must be at least 1")
	}
	if b.GlobalLimit != nil && *b.GlobalLimit < 1 {
		return fmt.Errorf("budget global_limit must be at least 1")
	}
	if b.ServiceWindow != nil && *b.ServiceWindow <= 0 {
		return fmt.Errorf("budget service_window must be positive")
	}
	if b.GlobalWindow != nil && *b.GlobalWindow <= 0 {
		return fmt.Errorf("budget global_window must be positive")
	}
	return nil
}

func (p PolicySection) validate(service string) error {
	if p.MaxRetries != nil && *p.MaxRetries < 0 {
		return fmt.Errorf("policy %s: max_retries cannot be negative", service)
	}
	if p.BaseDelay != nil && *p.BaseDelay <= 0 {
		return fmt.Errorf("policy %s: base_delay must be positive", service)
	}
	if p.MaxDelay != nil && *p.MaxDelay <= 0 {
		return fmt.Errorf("policy %s: max_delay must be positive", service)
	}
	if p.BaseDelay != nil && p.MaxDelay != nil && *p.MaxDelay < *p.BaseDelay {
		return fmt.Errorf("policy %s: max_delay cannot be below base_delay", service)
	}
	if p.Multiplier != nil && *p.Multiplier < 1 {
		return fmt.Errorf("policy %s: multiplier must be at least 1", service)
	}
	if p.Jitter != nil && (*p.Jitter < 0 || *p.Jitter > 1) {
		return fmt.Errorf("policy %s: jitter must be between 0 and 1", service)
	}
	if p.Timeout != nil && *p.Timeout <= 0 {
		return fmt.Errorf("policy %s: timeout must be positive", service)
	}
	if p.Strategy != nil {
		if _, ok := retry.ParseStrategy(*p.Strategy); !ok {
			return fmt.Errorf("policy %s: unknown strategy %q", service, *p.Strategy)
		}
	}
	return nil
}

// Options converts the file into resilience manager options layered
// over the built-in defaults. A nil receiver yields no options.
func (c *ResilienceConfig) Options() []resilience.Option {
	if c == nil {
		return nil
	}

	var opts []resilience.Option

	if c.Analytics.HistorySize != nil {
		opts = append(opts, resilience.WithHistorySize(*c.Analytics.HistorySize))
	}

	if b := c.Budget; b.ServiceLimit != nil || b.ServiceWindow != nil || b.GlobalLimit != nil || b.GlobalWindow != nil {
		cfg := budget.DefaultConfig()
		if b.ServiceLimit != nil {
			cfg.ServiceLimit = *b.ServiceLimit
		}
		if b.ServiceWindow != nil {
			cfg.ServiceWindow = time.Duration(*b.ServiceWindow)
		}
		if b.GlobalLimit != nil {
			cfg.GlobalLimit = *b.GlobalLimit
		}
		if b.GlobalWindow != nil {
			cfg.GlobalWindow = time.Duration(*b.GlobalWindow)
		}
		opts = append(opts, resilience.WithBudgetConfig(cfg))
	}

	if len(c.Policies) > 0 {
		defaults := retry.ServicePolicies()
		for service, section := range c.Policies {
			policy, ok := defaults[service]
			if !ok {
				policy = retry.DefaultPolicy()
			}
			policy.Service = service
			section.apply(&policy)
			opts = append(opts, resilience.WithPolicy(service, policy))
		}
	}

	if len(c.ErrorKinds) > 0 {
		defaults := retry.DefaultKindPolicies()
		for name, section := range c.ErrorKinds {
			kind, ok := classify.ParseKind(name)
			if !ok {
				continue
			}
			kp := defaults[kind]
			if section.MaxRetries != nil {
				kp.MaxRetries = *section.MaxRetries
			}
			if section.BaseDelay != nil {
				kp.BaseDelay = time.Duration(*section.BaseDelay)
			}
			if section.MaxDelay != nil {
				kp.MaxDelay = time.Duration(*section.MaxDelay)
			}
			opts = append(opts, resilience.WithKindPolicy(kind, kp))
		}
	}

	if len(c.Breakers) > 0 {
		defaults := circuitbreaker.ServiceConfigs()
		for service, section := range c.Breakers {
			cfg, ok := defaults[service]
			if !ok {
				cfg = circuitbreaker.DefaultConfig(service)
			}
			if section.FailureThreshold != nil {
				cfg.FailureThreshold = *section.FailureThreshold
			}
			if section.RecoveryTimeout != nil {
				cfg.RecoveryTimeout = time.Duration(*section.RecoveryTimeout)
			}
			opts = append(opts, resilience.WithBreakerConfig(cfg))
		}
	}

	return opts
}

func (s PolicySection) apply(p *retry.Policy) {
	if s.MaxRetries != nil {
		p.MaxRetries = *s.MaxRetries
	}
	if s.BaseDelay != nil {
		p.BaseDelay = time.Duration(*s.BaseDelay)
	}
	if s.MaxDelay != nil {
		p.MaxDelay = time.Duration(*s.MaxDelay)
	}
	if s.Multiplier != nil {
		p.Multiplier = *s.Multiplier
	}
	if s.Jitter != nil {
		p.JitterFraction = *s.Jitter
	}
	if s.Timeout != nil {
		p.Timeout = time.Duration(*s.Timeout)
	}
	if s.Strategy != nil {
		if strategy, ok := retry.ParseStrategy(*s.Strategy); ok {
			p.Strategy = strategy
		}
	}
}
