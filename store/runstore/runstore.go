// Package runstore provides a durable engine.RunStore backed by
// Postgres via pgx, adapted from the teacher project's connection
// pooling conventions (common/db/db.go): a pgxpool.Pool wrapper with a
// health check and a small, hand-rolled schema (one JSONB column per
// report, keyed by run id) rather than an ORM, matching the rest of
// the codebase's direct-SQL style.
package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lyzr/flowengine/sdk"
)

// Store persists run reports to a Postgres table:
//
//	CREATE TABLE IF NOT EXISTS engine_runs (
//	  run_id TEXT PRIMARY KEY,
//	  report JSONB NOT NULL,
//	  finished_at TIMESTAMPTZ NOT NULL
//	);
type Store struct {
	pool *pgxpool.Pool
}

// New connects a pool against dsn and verifies it with a ping.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() { s.pool.Close() }

// Save upserts report under its run id.
func (s *Store) Save(ctx context.Context, report sdk.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO engine_runs (run_id, report, finished_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (run_id) DO UPDATE SET report = EXCLUDED.report, finished_at = EXCLUDED.finished_at
	`, report.RunID, body, report.FinishedAt)
	if err != nil {
		return fmt.Errorf("save run report: %w", err)
	}
	return nil
}

// Get loads a previously saved report by run id.
func (s *Store) Get(ctx context.Context, runID string) (sdk.Report, bool, error) {
	var body []byte
	err := s.pool.QueryRow(ctx, `SELECT report FROM engine_runs WHERE run_id = $1`, runID).Scan(&body)
	if err != nil {
		return sdk.Report{}, false, nil
	}
	var report sdk.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return sdk.Report{}, false, fmt.Errorf("unmarshal report: %w", err)
	}
	return report, true, nil
}
