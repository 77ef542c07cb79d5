package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("audit record not found")

// RunStatus mirrors the agent_runs status column.
type RunStatus string

// Run statuses persisted in agent_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunError   RunStatus = "error"
)

// Run models one process lifetime of the agent.
type Run struct {
	ID           uuid.UUID
	StartedAt    time.Time
	FinishedAt   *time.Time
	Status       RunStatus
	ErrorMessage *string
}

// Outcome is one processed bookmark.
type Outcome struct {
	RunID      uuid.UUID
	BookmarkID int64
	URL        string
	Result     string
	// Kind is empty for successful items.
	Kind       string
	Attempts   int
	Duration   time.Duration
	RecordedAt time.Time
}

// AuditRepository persists runs and their per-item outcomes.
type AuditRepository interface {
	StartRun(ctx context.Context, runID uuid.UUID, startedAt time.Time) error
	CompleteRun(ctx context.Context, runID uuid.UUID, finishedAt time.Time, status RunStatus, errMsg *string) error
	InsertOutcomes(ctx context.Context, outcomes []Outcome) error
	GetRun(ctx context.Context, runID uuid.UUID) (Run, error)
	ListOutcomes(ctx context.Context, runID uuid.UUID, limit, offset int) ([]Outcome, error)
}
