// Package postgres provides the Postgres-backed run audit repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/xfix/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS agent_runs (
	id            UUID PRIMARY KEY,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	status        TEXT NOT NULL,
	error_message TEXT
);
CREATE TABLE IF NOT EXISTS enrichment_outcomes (
	run_id       UUID NOT NULL REFERENCES agent_runs(id),
	bookmark_id  BIGINT NOT NULL,
	url          TEXT NOT NULL,
	result       TEXT NOT NULL,
	kind         TEXT,
	attempts     INT NOT NULL DEFAULT 0,
	duration_ms  BIGINT NOT NULL DEFAULT 0,
	recorded_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS enrichment_outcomes_run_idx ON enrichment_outcomes (run_id, recorded_at);
`

var outcomeColumns = []string{
	"run_id", "bookmark_id", "url", "result", "kind", "attempts", "duration_ms", "recorded_at",
}

// Config controls the connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, table pgx.Identifier, columns []string, src pgx.CopyFromSource) (int64, error)
	Close()
}

// AuditStore implements store.AuditRepository using Postgres.
type AuditStore struct {
	pool pool
}

// NewAuditStore connects to Postgres.
func NewAuditStore(ctx context.Context, cfg Config) (*AuditStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("audit dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &AuditStore{pool: p}, nil
}

// NewAuditStoreWithPool wraps an existing pool (primarily for testing).
func NewAuditStoreWithPool(p pool) (*AuditStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &AuditStore{pool: p}, nil
}

// Close closes the underlying connection pool.
func (s *AuditStore) Close() {
	s.pool.Close()
}

// Migrate creates the audit tables when missing.
func (s *AuditStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate audit schema: %w", err)
	}
	return nil
}

// StartRun inserts a running row for runID.
func (s *AuditStore) StartRun(ctx context.Context, runID uuid.UUID, startedAt time.Time) error {
	query := `
		INSERT INTO agent_runs (id, started_at, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING;
	`
	if _, err := s.pool.Exec(ctx, query, runID, startedAt, store.RunRunning); err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// CompleteRun marks a run finished.
func (s *AuditStore) CompleteRun(
	ctx context.Context,
	runID uuid.UUID,
	finishedAt time.Time,
	status store.RunStatus,
	errMsg *string,
) error {
	query := `
		UPDATE agent_runs
		SET finished_at = $1, status = $2, error_message = $3
		WHERE id = $4;
	`
	res, err := s.pool.Exec(ctx, query, finishedAt, status, errMsg, runID)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// InsertOutcomes bulk-loads outcomes with COPY.
func (s *AuditStore) InsertOutcomes(ctx context.Context, outcomes []store.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(outcomes))
	for _, o := range outcomes {
		var kind *string
		if o.Kind != "" {
			k := o.Kind
			kind = &k
		}
		rows = append(rows, []any{
			o.RunID, o.BookmarkID, o.URL, o.Result, kind, o.Attempts, o.Duration.Milliseconds(), o.RecordedAt,
		})
	}
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{"enrichment_outcomes"}, outcomeColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy outcomes: %w", err)
	}
	if n != int64(len(rows)) {
		return fmt.Errorf("copied %d of %d outcomes", n, len(rows))
	}
	return nil
}

// GetRun loads a run or returns store.ErrNotFound.
func (s *AuditStore) GetRun(ctx context.Context, runID uuid.UUID) (store.Run, error) {
	query := `
		SELECT id, started_at, finished_at, status, error_message
		FROM agent_runs
		WHERE id = $1;
	`
	var run store.Run
	err := s.pool.QueryRow(ctx, query, runID).Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.Status,
		&run.ErrorMessage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Run{}, store.ErrNotFound
		}
		return store.Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListOutcomes returns a run's outcomes, newest first.
func (s *AuditStore) ListOutcomes(ctx context.Context, runID uuid.UUID, limit, offset int) ([]store.Outcome, error) {
	query := `
		SELECT run_id, bookmark_id, url, result, COALESCE(kind, ''), attempts, duration_ms, recorded_at
		FROM enrichment_outcomes
		WHERE run_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2 OFFSET $3;
	`
	rows, err := s.pool.Query(ctx, query, runID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()

	var out []store.Outcome
	for rows.Next() {
		var (
			o          store.Outcome
			durationMS int64
		)
		if err := rows.Scan(
			&o.RunID,
			&o.BookmarkID,
			&o.URL,
			&o.Result,
			&o.Kind,
			&o.Attempts,
			&durationMS,
			&o.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outcome row: %w", err)
		}
		o.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outcomes: %w", err)
	}
	return out, nil
}
