package circuitbreaker

import "sync"

// Registry owns one breaker per service, created lazily on first use and
// kept for the life of the process. All lookups for the same service share
// the same breaker state.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	configs  map[string]Config

	// onChange is attached to every breaker the registry creates.
	onChange func(service string, from, to State)
}

// NewRegistry builds a registry from per-service configs. Services without
// a config get DefaultConfig. onChange may be nil.
func NewRegistry(configs map[string]Config, onChange func(service string, from, to State)) *Registry {
	if configs == nil {
		configs = ServiceConfigs()
	}
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		configs:  configs,
		onChange: onChange,
	}
}

// Get returns the breaker for a service, creating it on first use.
func (r *Registry) Get(service string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[service]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[service]; ok {
		return cb
	}
	cb = New(r.configFor(service))
	r.breakers[service] = cb
	return cb
}

// configFor resolves the breaker config for a service. Callers hold r.mu.
func (r *Registry) configFor(service string) Config {
	cfg, ok := r.configs[service]
	if !ok {
		cfg = DefaultConfig(service)
	}
	cfg.Service = service
	cfg.OnStateChange = r.onChange
	return cfg
}

// Reset forces a service's breaker back to closed with cleared counters.
// gobreaker has no public reset, so a fresh instance is swapped in; an
// in-flight call on the old instance settles against the old state and is
// then discarded with it.
func (r *Registry) Reset(service string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.breakers[service]; !ok {
		return
	}
	old := r.breakers[service].State()
	r.breakers[service] = New(r.configFor(service))
	if r.onChange != nil && old != StateClosed {
		r.onChange(service, old, StateClosed)
	}
}

// ResetAll resets every breaker the registry has created.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	r.mu.RUnlock()

	for _, name := range names {
		r.Reset(name)
	}
}

// State returns the current state of a service's breaker. A service that
// has never been called reports closed without creating a breaker.
func (r *Registry) State(service string) State {
	r.mu.RLock()
	cb, ok := r.breakers[service]
	r.mu.RUnlock()
	if !ok {
		return StateClosed
	}
	return cb.State()
}

// AllMetrics returns the metrics of every breaker created so far.
func (r *Registry) AllMetrics() map[string]Metrics {
	r.mu.RLock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.RUnlock()

	out := make(map[string]Metrics, len(breakers))
	for _, cb := range breakers {
		out[cb.Service()] = cb.Metrics()
	}
	return out
}
