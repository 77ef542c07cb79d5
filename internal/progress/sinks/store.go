package sinks

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/xfix/internal/progress"
	"github.com/JakeFAU/xfix/internal/store"
)

// StoreSink persists run lifecycle and item outcomes via a
// store.AuditRepository. Outcomes in a batch are written with one call.
type StoreSink struct {
	repo   store.AuditRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.AuditRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume forwards run events in order and bulk-inserts item outcomes. Run
// completion is written after the batch's outcomes.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	var (
		outcomes []store.Outcome
		finals   []progress.Event
	)
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			if err := s.repo.StartRun(ctx, evt.RunUUID(), evt.TS); err != nil {
				return fmt.Errorf("start run: %w", err)
			}
		case progress.StageRunDone, progress.StageRunError:
			finals = append(finals, evt)
		case progress.StageItemDone:
			outcomes = append(outcomes, store.Outcome{
				RunID:      evt.RunUUID(),
				BookmarkID: evt.BookmarkID,
				URL:        evt.URL,
				Result:     string(evt.Outcome),
				Kind:       evt.Kind,
				Attempts:   evt.Attempts,
				Duration:   evt.Dur,
				RecordedAt: evt.TS,
			})
		}
	}

	if len(outcomes) > 0 {
		if err := s.repo.InsertOutcomes(ctx, outcomes); err != nil {
			return fmt.Errorf("insert outcomes: %w", err)
		}
	}
	for _, evt := range finals {
		status := store.RunSuccess
		var note *string
		if evt.Stage == progress.StageRunError {
			status = store.RunError
			if evt.Note != "" {
				msg := evt.Note
				note = &msg
			}
		}
		if err := s.repo.CompleteRun(ctx, evt.RunUUID(), evt.TS, status, note); err != nil {
			return fmt.Errorf("complete run: %w", err)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
