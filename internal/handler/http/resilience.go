package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"eventscout/internal/handler/http/respond"
	"eventscout/internal/resilience"
)

// Reset targets accepted by the reset endpoint.
const (
	resetTargetAnalytics = "analytics"
	resetTargetBudget    = "budget"
	resetTargetCircuits  = "circuits"
	resetTargetAll       = "all"
)

// ResilienceHandler exposes the resilience layer's observability surface:
// the analytics window, retry budget windows, circuit breaker counters,
// and an admin-only reset operation.
type ResilienceHandler struct {
	Manager *resilience.Manager
}

// Analytics handles GET /resilience/analytics.
func (h *ResilienceHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respond.SafeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	respond.JSON(w, http.StatusOK, h.Manager.Analytics())
}

// budgetResponse is the JSON shape of GET /resilience/budget.
type budgetResponse struct {
	Global   any `json:"global"`
	Services any `json:"services"`
}

// Budget handles GET /resilience/budget. The services map covers every
// service the budget tracker has seen this window.
func (h *ResilienceHandler) Budget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respond.SafeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	respond.JSON(w, http.StatusOK, budgetResponse{
		Global:   h.Manager.GlobalBudgetStatus(),
		Services: h.Manager.BudgetReport(),
	})
}

// Circuits handles GET /resilience/circuits.
func (h *ResilienceHandler) Circuits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respond.SafeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}
	respond.JSON(w, http.StatusOK, h.Manager.AllCircuitMetrics())
}

// resetRequest is the JSON body of POST /resilience/reset.
type resetRequest struct {
	// Target selects what to reset: analytics, budget, circuits, or all.
	Target string `json:"target"`

	// Service limits a circuits reset to one breaker. Empty resets all.
	Service string `json:"service,omitempty"`
}

// Reset handles POST /resilience/reset. The route is registered behind
// admin authorization; resetting state mid-incident discards evidence, so
// it is deliberate-action only.
func (h *ResilienceHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respond.SafeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
		return
	}

	var req resetRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req); err != nil {
		respond.SafeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	switch req.Target {
	case resetTargetAnalytics:
		h.Manager.ResetAnalytics()
	case resetTargetBudget:
		h.Manager.ResetBudget()
	case resetTargetCircuits:
		if req.Service != "" {
			h.Manager.ResetCircuitBreaker(req.Service)
		} else {
			h.Manager.ResetAllCircuitBreakers()
		}
	case resetTargetAll:
		h.Manager.ResetAnalytics()
		h.Manager.ResetBudget()
		h.Manager.ResetAllCircuitBreakers()
	default:
		respond.SafeError(w, http.StatusBadRequest,
			fmt.Errorf("unknown reset target %q (expected analytics, budget, circuits, or all)", req.Target))
		return
	}

	respond.JSON(w, http.StatusOK, map[string]string{
		"status": "reset",
		"target": req.Target,
	})
}
