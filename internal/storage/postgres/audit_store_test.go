package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/xfix/internal/store"
)

func TestAuditStoreStartRun(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	audit, err := NewAuditStoreWithPool(mock)
	require.NoError(t, err)

	runID := uuid.New()
	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec("INSERT INTO agent_runs").
		WithArgs(runID, now, store.RunRunning).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, audit.StartRun(context.Background(), runID, now))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditStoreCompleteRunMissing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	audit, err := NewAuditStoreWithPool(mock)
	require.NoError(t, err)

	runID := uuid.New()
	now := time.Unix(1700000000, 0).UTC()
	var errMsg *string
	mock.ExpectExec("UPDATE agent_runs").
		WithArgs(now, store.RunSuccess, errMsg, runID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = audit.CompleteRun(context.Background(), runID, now, store.RunSuccess, nil)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditStoreInsertOutcomesUsesCopy(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	audit, err := NewAuditStoreWithPool(mock)
	require.NoError(t, err)

	runID := uuid.New()
	now := time.Unix(1700000000, 0).UTC()
	outcomes := []store.Outcome{
		{RunID: runID, BookmarkID: 1, URL: "https://x.com/a/status/1", Result: "enriched", RecordedAt: now},
		{RunID: runID, BookmarkID: 2, URL: "https://x.com/a/status/2", Result: "failed", Kind: "not_found", Attempts: 1, RecordedAt: now},
	}
	mock.ExpectCopyFrom(pgx.Identifier{"enrichment_outcomes"}, outcomeColumns).WillReturnResult(2)

	require.NoError(t, audit.InsertOutcomes(context.Background(), outcomes))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditStoreInsertOutcomesEmpty(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	audit, err := NewAuditStoreWithPool(mock)
	require.NoError(t, err)
	require.NoError(t, audit.InsertOutcomes(context.Background(), nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditStoreGetRunNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	audit, err := NewAuditStoreWithPool(mock)
	require.NoError(t, err)

	runID := uuid.New()
	mock.ExpectQuery("SELECT id, started_at").
		WithArgs(runID).
		WillReturnError(pgx.ErrNoRows)

	_, err = audit.GetRun(context.Background(), runID)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditStoreListOutcomes(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	audit, err := NewAuditStoreWithPool(mock)
	require.NoError(t, err)

	runID := uuid.New()
	now := time.Unix(1700000000, 0).UTC()
	rows := pgxmock.NewRows([]string{
		"run_id", "bookmark_id", "url", "result", "kind", "attempts", "duration_ms", "recorded_at",
	}).AddRow(runID, int64(7), "https://x.com/a/status/7", "retry", "network", 2, int64(1500), now)
	mock.ExpectQuery("SELECT run_id, bookmark_id").
		WithArgs(runID, 10, 0).
		WillReturnRows(rows)

	got, err := audit.ListOutcomes(context.Background(), runID, 10, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(7), got[0].BookmarkID)
	require.Equal(t, "network", got[0].Kind)
	require.Equal(t, 2, got[0].Attempts)
	require.Equal(t, 1500*time.Millisecond, got[0].Duration)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditStoreMigrate(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	audit, err := NewAuditStoreWithPool(mock)
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS agent_runs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	require.NoError(t, audit.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewAuditStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewAuditStore(context.Background(), Config{})
	require.Error(t, err)
}
