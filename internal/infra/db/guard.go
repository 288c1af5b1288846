package db

import (
	"context"
	"database/sql"

	"eventscout/internal/resilience"
	"eventscout/internal/resilience/retry"
)

// Guard wraps a *sql.DB so that queries run through the resilience layer
// under the database service key: each call passes the database circuit
// breaker and is retried per the database policy within the retry budget.
type Guard struct {
	db  *sql.DB
	mgr *resilience.Manager
}

// NewGuard wraps database with manager's database policy and breaker.
func NewGuard(database *sql.DB, mgr *resilience.Manager) *Guard {
	return &Guard{db: database, mgr: mgr}
}

// QueryContext executes a query with breaker and retry protection.
func (g *Guard) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return resilience.ExecuteWithFullRecovery(ctx, g.mgr, retry.ServiceDatabase,
		func(ctx context.Context) (*sql.Rows, error) {
			return g.db.QueryContext(ctx, query, args...)
		}, nil, nil)
}

// ExecContext executes a statement with breaker and retry protection.
func (g *Guard) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return resilience.ExecuteWithFullRecovery(ctx, g.mgr, retry.ServiceDatabase,
		func(ctx context.Context) (sql.Result, error) {
			return g.db.ExecContext(ctx, query, args...)
		}, nil, nil)
}

// QueryRowContext passes through unguarded: sql.Row defers its error to
// Scan, so there is no failure for the breaker or the retry loop to see.
func (g *Guard) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return g.db.QueryRowContext(ctx, query, args...)
}

// PingContext checks connectivity with breaker and retry protection.
func (g *Guard) PingContext(ctx context.Context) error {
	_, err := resilience.ExecuteWithFullRecovery(ctx, g.mgr, retry.ServiceDatabase,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, g.db.PingContext(ctx)
		}, nil, nil)
	return err
}

// DB returns the underlying connection for operations that manage their
// own failure handling, such as pool stats for health checks.
func (g *Guard) DB() *sql.DB {
	return g.db
}
