// Package budget enforces ceilings on retry volume per time window. Two
// independent ceilings apply: a short per-service window and a long global
// window shared by every service. The tracker bounds total retry traffic
// system-wide regardless of per-call retry limits.
package budget

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Clock abstracts time so window resets are testable.
type Clock interface {
	Now() time.Time
}

// systemClock implements Clock using the standard time package.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// ErrExceeded is matched with errors.Is when a reservation is rejected.
// The concrete error is always an *ExceededError naming the service, the
// scope that rejected, and when that window resets.
var ErrExceeded = errors.New("retry budget exceeded")

// Scopes name which ceiling rejected a reservation.
const (
	ScopeService = "service"
	ScopeGlobal  = "global"
)

// ExceededError reports a rejected budget reservation.
type ExceededError struct {
	Service string
	Scope   string
	ResetAt time.Time
}

// Error implements the error interface.
func (e *ExceededError) Error() string {
	return fmt.Sprintf("retry budget exceeded for service %q (%s window, resets at %s)",
		e.Service, e.Scope, e.ResetAt.UTC().Format(time.RFC3339))
}

// Unwrap lets errors.Is match ErrExceeded.
func (e *ExceededError) Unwrap() error { return ErrExceeded }

// Config holds the two ceilings and their windows.
type Config struct {
	// ServiceLimit is the number of retries each service may issue per
	// ServiceWindow.
	ServiceLimit int

	// ServiceWindow is the per-service counting window.
	ServiceWindow time.Duration

	// GlobalLimit is the number of retries the whole process may issue per
	// GlobalWindow, across all services.
	GlobalLimit int

	// GlobalWindow is the global counting window.
	GlobalWindow time.Duration

	// Clock supplies the time source. Nil means the system clock.
	Clock Clock
}

// DefaultConfig returns the built-in budget: 10 retries per service per
// minute and 200 retries globally per hour.
func DefaultConfig() Config {
	return Config{
		ServiceLimit:  10,
		ServiceWindow: 1 * time.Minute,
		GlobalLimit:   200,
		GlobalWindow:  1 * time.Hour,
	}
}

// Status is a point-in-time view of one window.
type Status struct {
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// window is one fixed counting window with lazy reset. Each window carries
// its own lock so unrelated services never serialize on each other.
type window struct {
	mu      sync.Mutex
	used    int
	resetAt time.Time
}

// Tracker enforces the per-service and global retry ceilings.
type Tracker struct {
	cfg Config

	mu       sync.RWMutex // guards the services map only
	services map[string]*window

	global window
}

// NewTracker builds a tracker, filling zero config fields from defaults.
func NewTracker(cfg Config) *Tracker {
	def := DefaultConfig()
	if cfg.ServiceLimit <= 0 {
		cfg.ServiceLimit = def.ServiceLimit
	}
	if cfg.ServiceWindow <= 0 {
		cfg.ServiceWindow = def.ServiceWindow
	}
	if cfg.GlobalLimit <= 0 {
		cfg.GlobalLimit = def.GlobalLimit
	}
	if cfg.GlobalWindow <= 0 {
		cfg.GlobalWindow = def.GlobalWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	return &Tracker{
		cfg:      cfg,
		services: make(map[string]*window),
	}
}

// serviceWindow returns the window for a service, creating it lazily.
func (t *Tracker) serviceWindow(service string) *window {
	t.mu.RLock()
	w, ok := t.services[service]
	t.mu.RUnlock()
	if ok {
		return w
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok := t.services[service]; ok {
		return w
	}
	w = &window{}
	t.services[service] = w
	return w
}

// maybeReset applies the lazy window reset. Callers hold w.mu.
func maybeReset(w *window, dur time.Duration, now time.Time) {
	if w.resetAt.IsZero() || !now.Before(w.resetAt) {
		w.used = 0
		w.resetAt = now.Add(dur)
	}
}

// CanRetry reports whether both the service window and the global window
// have headroom for one more retry. It does not consume budget.
func (t *Tracker) CanRetry(service string) bool {
	now := t.cfg.Clock.Now()

	w := t.serviceWindow(service)
	w.mu.Lock()
	maybeReset(w, t.cfg.ServiceWindow, now)
	serviceOK := w.used < t.cfg.ServiceLimit
	w.mu.Unlock()
	if !serviceOK {
		return false
	}

	t.global.mu.Lock()
	maybeReset(&t.global, t.cfg.GlobalWindow, now)
	globalOK := t.global.used < t.cfg.GlobalLimit
	t.global.mu.Unlock()

	return globalOK
}

// Record counts one retry against both windows. Counters saturate at their
// ceilings so a misuse without a prior CanRetry cannot push used past the
// limit. Prefer Reserve, which checks and counts atomically.
func (t *Tracker) Record(service string) {
	now := t.cfg.Clock.Now()

	w := t.serviceWindow(service)
	w.mu.Lock()
	maybeReset(w, t.cfg.ServiceWindow, now)
	if w.used < t.cfg.ServiceLimit {
		w.used++
	}
	w.mu.Unlock()

	t.global.mu.Lock()
	maybeReset(&t.global, t.cfg.GlobalWindow, now)
	if t.global.used < t.cfg.GlobalLimit {
		t.global.used++
	}
	t.global.mu.Unlock()
}

// Reserve atomically checks both ceilings and, only when both have
// headroom, counts the retry against both. A rejection returns an
// *ExceededError and consumes nothing, so the rejected operation can report
// an untouched budget. Lock order is always service then global.
func (t *Tracker) Reserve(service string) error {
	now := t.cfg.Clock.Now()

	w := t.serviceWindow(service)
	w.mu.Lock()
	defer w.mu.Unlock()
	maybeReset(w, t.cfg.ServiceWindow, now)
	if w.used >= t.cfg.ServiceLimit {
		return &ExceededError{Service: service, Scope: ScopeService, ResetAt: w.resetAt}
	}

	t.global.mu.Lock()
	defer t.global.mu.Unlock()
	maybeReset(&t.global, t.cfg.GlobalWindow, now)
	if t.global.used >= t.cfg.GlobalLimit {
		return &ExceededError{Service: service, Scope: ScopeGlobal, ResetAt: t.global.resetAt}
	}

	w.used++
	t.global.used++
	return nil
}

// Status returns the service window view after applying the lazy reset.
func (t *Tracker) Status(service string) Status {
	now := t.cfg.Clock.Now()

	w := t.serviceWindow(service)
	w.mu.Lock()
	defer w.mu.Unlock()
	maybeReset(w, t.cfg.ServiceWindow, now)

	return Status{
		Used:      w.used,
		Limit:     t.cfg.ServiceLimit,
		Remaining: t.cfg.ServiceLimit - w.used,
		ResetAt:   w.resetAt,
	}
}

// GlobalStatus returns the global window view.
func (t *Tracker) GlobalStatus() Status {
	now := t.cfg.Clock.Now()

	t.global.mu.Lock()
	defer t.global.mu.Unlock()
	maybeReset(&t.global, t.cfg.GlobalWindow, now)

	return Status{
		Used:      t.global.used,
		Limit:     t.cfg.GlobalLimit,
		Remaining: t.cfg.GlobalLimit - t.global.used,
		ResetAt:   t.global.resetAt,
	}
}

// Report returns the status of every service window seen so far.
func (t *Tracker) Report() map[string]Status {
	t.mu.RLock()
	names := make([]string, 0, len(t.services))
	for name := range t.services {
		names = append(names, name)
	}
	t.mu.RUnlock()

	out := make(map[string]Status, len(names))
	for _, name := range names {
		out[name] = t.Status(name)
	}
	return out
}

// Reset clears every window. Administrative action.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.services = make(map[string]*window)
	t.mu.Unlock()

	t.global.mu.Lock()
	t.global.used = 0
	t.global.resetAt = time.Time{}
	t.global.mu.Unlock()
}
