// Package postgres implements the repository interfaces against Postgres.
// All statements run through the resilience guard so database blips are
// retried and sustained outages trip the database circuit breaker instead
// of hanging the pipeline.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"eventscout/internal/domain/entity"
	"eventscout/internal/infra/db"
	"eventscout/internal/repository"
)

type RunRepo struct{ db *db.Guard }

func NewRunRepo(guard *db.Guard) repository.RunRepository {
	return &RunRepo{db: guard}
}

func (repo *RunRepo) Create(ctx context.Context, run *entity.DiscoveryRun) (int64, error) {
	if err := run.Validate(); err != nil {
		return 0, fmt.Errorf("Create: %w", err)
	}

	queriesJSON, err := json.Marshal(run.Queries)
	if err != nil {
		return 0, fmt.Errorf("Create: marshal queries: %w", err)
	}

	const query = `
INSERT INTO discovery_runs (started_at, status, queries, pages_crawled, events_found, error)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`
	rows, err := repo.db.QueryContext(ctx, query,
		run.StartedAt, run.Status, queriesJSON, run.PagesCrawled, run.EventsFound, run.Error)
	if err != nil {
		return 0, fmt.Errorf("Create: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		return 0, fmt.Errorf("Create: no id returned")
	}
	var id int64
	if err := rows.Scan(&id); err != nil {
		return 0, fmt.Errorf("Create: %w", err)
	}
	return id, rows.Err()
}

func (repo *RunRepo) Finish(ctx context.Context, run *entity.DiscoveryRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("Finish: %w", err)
	}

	const query = `
UPDATE discovery_runs
SET finished_at = $1, status = $2, pages_crawled = $3, events_found = $4, error = $5
WHERE id = $6`
	result, err := repo.db.ExecContext(ctx, query,
		run.FinishedAt, run.Status, run.PagesCrawled, run.EventsFound, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("Finish: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("Finish: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("Finish: %w", entity.ErrNotFound)
	}
	return nil
}

func (repo *RunRepo) Get(ctx context.Context, id int64) (*entity.DiscoveryRun, error) {
	const query = `
SELECT id, started_at, finished_at, status, queries, pages_crawled, events_found, error
FROM discovery_runs
WHERE id = $1
LIMIT 1`
	rows, err := repo.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("Get: %w", err)
		}
		return nil, entity.ErrNotFound
	}
	run, err := scanRun(rows)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return run, nil
}

func (repo *RunRepo) ListRecent(ctx context.Context, limit int) ([]*entity.DiscoveryRun, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
SELECT id, started_at, finished_at, status, queries, pages_crawled, events_found, error
FROM discovery_runs
ORDER BY started_at DESC
LIMIT $1`
	rows, err := repo.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := make([]*entity.DiscoveryRun, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("ListRecent: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListRecent: %w", err)
	}
	return runs, nil
}

// scanRun scans one discovery_runs row including the JSONB queries column.
func scanRun(rows *sql.Rows) (*entity.DiscoveryRun, error) {
	var run entity.DiscoveryRun
	var queriesJSON []byte
	if err := rows.Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt, &run.Status,
		&queriesJSON, &run.PagesCrawled, &run.EventsFound, &run.Error,
	); err != nil {
		return nil, err
	}

	if len(queriesJSON) > 0 {
		if err := json.Unmarshal(queriesJSON, &run.Queries); err != nil {
			return nil, fmt.Errorf("unmarshal queries: %w", err)
		}
	}
	return &run, nil
}
