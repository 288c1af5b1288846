package repository

import (
	"context"

	"eventscout/internal/domain/entity"
)

// RunRepository persists discovery run records. Runs are written twice:
// once when the pipeline starts and once when it finishes.
type RunRepository interface {
	// Create inserts a new run record and returns its assigned ID.
	Create(ctx context.Context, run *entity.DiscoveryRun) (int64, error)
	// Finish writes the terminal fields (status, finish time, counters,
	// error message) of a previously created run.
	Finish(ctx context.Context, run *entity.DiscoveryRun) error
	// Get retrieves a run by ID.
	// Returns entity.ErrNotFound if no run with that ID exists.
	Get(ctx context.Context, id int64) (*entity.DiscoveryRun, error)
	// ListRecent retrieves the most recently started runs, newest first.
	ListRecent(ctx context.Context, limit int) ([]*entity.DiscoveryRun, error)
}
