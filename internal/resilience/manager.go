package resilience

import (
	"log/slog"

	"github.com/google/uuid"

	"eventscout/internal/resilience/analytics"
	"eventscout/internal/resilience/budget"
	"eventscout/internal/resilience/circuitbreaker"
	"eventscout/internal/resilience/classify"
	"eventscout/internal/resilience/retry"
)

// Manager owns every piece of shared resilience state: retry policies,
// per-kind ceilings, the budget tracker, the circuit breaker registry,
// and the analytics ring. Construct one per process and pass it to call
// sites; there is no package-level instance.
type Manager struct {
	logger    *slog.Logger
	clock     Clock
	rand      retry.Rand
	metrics   Metrics
	newCallID func() string

	policies     map[string]retry.Policy
	kindPolicies map[classify.Kind]retry.KindPolicy

	budgetCfg      budget.Config
	breakerConfigs map[string]circuitbreaker.Config
	historySize    int

	budget    *budget.Tracker
	breakers  *circuitbreaker.Registry
	analytics *analytics.Recorder
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock injects the time source used for backoff waits, latency
// measurement, and budget windows. Circuit breaker recovery timeouts run
// on real time regardless.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithRand injects the jitter source.
func WithRand(r retry.Rand) Option {
	return func(m *Manager) { m.rand = r }
}

// WithMetrics sets the metrics exporter. Defaults to NopMetrics.
func WithMetrics(mx Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// WithPolicy sets or replaces the retry policy for one service.
func WithPolicy(service string, p retry.Policy) Option {
	return func(m *Manager) {
		p.Service = service
		m.policies[service] = p
	}
}

// WithPolicies merges service policies over the built-in set.
func WithPolicies(policies map[string]retry.Policy) Option {
	return func(m *Manager) {
		for service, p := range policies {
			p.Service = service
			m.policies[service] = p
		}
	}
}

// WithKindPolicy overrides the retry ceiling and delay substitution for
// one error kind.
func WithKindPolicy(kind classify.Kind, kp retry.KindPolicy) Option {
	return func(m *Manager) { m.kindPolicies[kind] = kp }
}

// WithBudgetConfig sets the retry budget ceilings.
func WithBudgetConfig(cfg budget.Config) Option {
	return func(m *Manager) { m.budgetCfg = cfg }
}

// WithBreakerConfig sets or replaces the circuit breaker settings for the
// service named in cfg.
func WithBreakerConfig(cfg circuitbreaker.Config) Option {
	return func(m *Manager) { m.breakerConfigs[cfg.Service] = cfg }
}

// WithBreakerConfigs merges breaker settings over the built-in set.
func WithBreakerConfigs(configs map[string]circuitbreaker.Config) Option {
	return func(m *Manager) {
		for service, cfg := range configs {
			cfg.Service = service
			m.breakerConfigs[service] = cfg
		}
	}
}

// WithHistorySize caps the analytics attempt ring.
func WithHistorySize(n int) Option {
	return func(m *Manager) { m.historySize = n }
}

// New builds a Manager with the built-in service policies, breaker
// settings, and budget, then applies opts.
func New(opts ...Option) *Manager {
	m := &Manager{
		logger:         slog.Default(),
		clock:          SystemClock(),
		rand:           retry.DefaultRand(),
		metrics:        NopMetrics{},
		newCallID:      func() string { return uuid.New().String() },
		policies:       retry.ServicePolicies(),
		kindPolicies:   retry.DefaultKindPolicies(),
		budgetCfg:      budget.DefaultConfig(),
		breakerConfigs: circuitbreaker.ServiceConfigs(),
		historySize:    analytics.DefaultHistorySize,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.budgetCfg.Clock == nil {
		m.budgetCfg.Clock = m.clock
	}
	m.budget = budget.NewTracker(m.budgetCfg)
	m.analytics = analytics.NewRecorder(m.historySize)
	m.breakers = circuitbreaker.NewRegistry(m.breakerConfigs, func(service string, from, to circuitbreaker.State) {
		m.metrics.SetCircuitState(service, to)
	})
	return m
}

// policyFor resolves the effective policy for a call: built-in default,
// overlaid by the service policy, overlaid by caller options. Unknown
// services fall back to the default policy but keep their own name as
// the budget and breaker key.
func (m *Manager) policyFor(service string, opts ...retry.Option) retry.Policy {
	p, ok := m.policies[service]
	if !ok {
		p, ok = m.policies[retry.ServiceDefault]
		if !ok {
			p = retry.DefaultPolicy()
		}
		p.Service = service
	}
	return p.Apply(opts...)
}

// Breaker returns the circuit breaker for a service, creating it on
// first use.
func (m *Manager) Breaker(service string) *circuitbreaker.CircuitBreaker {
	return m.breakers.Get(service)
}

// Analytics returns the derived view of the recent attempt window.
func (m *Manager) Analytics() analytics.Snapshot {
	return m.analytics.Snapshot()
}

// BudgetStatus returns the retry budget window for one service.
func (m *Manager) BudgetStatus(service string) budget.Status {
	return m.budget.Status(service)
}

// GlobalBudgetStatus returns the process-wide retry budget window.
func (m *Manager) GlobalBudgetStatus() budget.Status {
	return m.budget.GlobalStatus()
}

// BudgetReport returns the budget window of every service seen so far.
func (m *Manager) BudgetReport() map[string]budget.Status {
	return m.budget.Report()
}

// CircuitState reports a breaker's state without creating it.
func (m *Manager) CircuitState(service string) circuitbreaker.State {
	return m.breakers.State(service)
}

// CircuitMetrics returns counters for one service's breaker.
func (m *Manager) CircuitMetrics(service string) circuitbreaker.Metrics {
	return m.breakers.Get(service).Metrics()
}

// AllCircuitMetrics returns counters for every breaker created so far.
func (m *Manager) AllCircuitMetrics() map[string]circuitbreaker.Metrics {
	return m.breakers.AllMetrics()
}

// ResetAnalytics clears the attempt window.
func (m *Manager) ResetAnalytics() {
	m.analytics.Reset()
}

// ResetBudget clears every budget window.
func (m *Manager) ResetBudget() {
	m.budget.Reset()
}

// ResetCircuitBreaker forces one breaker closed and clears its counters.
func (m *Manager) ResetCircuitBreaker(service string) {
	m.breakers.Reset(service)
}

// ResetAllCircuitBreakers forces every breaker closed.
func (m *Manager) ResetAllCircuitBreakers() {
	m.breakers.ResetAll()
}
