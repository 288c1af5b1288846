package entity

import (
	"fmt"
	"time"
)

// Discovery run statuses.
const (
	// RunStatusRunning marks a run that has started but not yet finished.
	RunStatusRunning = "running"

	// RunStatusSucceeded marks a run where every pipeline stage used its
	// primary path.
	RunStatusSucceeded = "succeeded"

	// RunStatusDegraded marks a run that finished on fallback paths.
	RunStatusDegraded = "degraded"

	// RunStatusFailed marks a run that produced no results.
	RunStatusFailed = "failed"
)

// DiscoveryRun records one execution of the discovery pipeline: when it
// ran, what it searched for, and what it produced. Runs are the only
// pipeline output persisted to the database.
type DiscoveryRun struct {
	ID           int64
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       string
	Queries      []string
	PagesCrawled int
	EventsFound  int
	Error        string
}

// Validate validates the DiscoveryRun entity fields.
// An empty Status is normalized to RunStatusRunning since a run record is
// created the moment the pipeline starts.
func (r *DiscoveryRun) Validate() error {
	if r.Status == "" {
		r.Status = RunStatusRunning
	}

	validStatuses := map[string]bool{
		RunStatusRunning:   true,
		RunStatusSucceeded: true,
		RunStatusDegraded:  true,
		RunStatusFailed:    true,
	}
	if !validStatuses[r.Status] {
		return fmt.Errorf("invalid status: %s (must be running, succeeded, degraded, or failed)", r.Status)
	}

	if r.StartedAt.IsZero() {
		return &ValidationError{Field: "started_at", Message: "start time is required"}
	}
	if r.FinishedAt != nil && r.FinishedAt.Before(r.StartedAt) {
		return &ValidationError{Field: "finished_at", Message: "run cannot finish before it starts"}
	}
	if r.PagesCrawled < 0 {
		return &ValidationError{Field: "pages_crawled", Message: "pages_crawled cannot be negative"}
	}
	if r.EventsFound < 0 {
		return &ValidationError{Field: "events_found", Message: "events_found cannot be negative"}
	}

	return nil
}

// Duration returns the run's wall-clock duration, or zero while the run is
// still in progress.
func (r *DiscoveryRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
