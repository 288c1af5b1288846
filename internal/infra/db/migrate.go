package db

import "database/sql"

// MigrateUp creates the discovery_runs table. Runs are the only pipeline
// output this system persists; event storage belongs to the surrounding
// product.
func MigrateUp(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS discovery_runs (
    id            BIGSERIAL PRIMARY KEY,
    started_at    TIMESTAMPTZ NOT NULL,
    finished_at   TIMESTAMPTZ,
    status        VARCHAR(20) NOT NULL DEFAULT 'running',
    queries       JSONB,
    pages_crawled INTEGER NOT NULL DEFAULT 0,
    events_found  INTEGER NOT NULL DEFAULT 0,
    error         TEXT NOT NULL DEFAULT ''
)`); err != nil {
		return err
	}

	// ListRecent orders by started_at DESC on every call.
	if _, err := db.Exec(
		`CREATE INDEX IF NOT EXISTS idx_discovery_runs_started_at ON discovery_runs(started_at DESC)`,
	); err != nil {
		return err
	}

	return nil
}
