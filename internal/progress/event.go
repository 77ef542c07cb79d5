package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart Stage = "RUN_START"
	StageRunDone  Stage = "RUN_DONE"
	StageRunError Stage = "RUN_ERROR"
	StageBatch    Stage = "BATCH"
	StageItemDone Stage = "ITEM_DONE"
)

// Outcome is the result of processing one bookmark.
type Outcome string

// Item outcomes.
const (
	OutcomeEnriched Outcome = "enriched"
	OutcomeDryRun   Outcome = "dry_run"
	OutcomeRetry    Outcome = "retry"
	OutcomeFailed   Outcome = "failed"
	OutcomeSkipped  Outcome = "skipped"
)

// Event captures a single milestone of an agent run.
type Event struct {
	// RunID identifies the process run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// BookmarkID and URL identify the item for ITEM_DONE events.
	BookmarkID int64
	URL        string
	Outcome    Outcome
	// Kind is the failure kind for retry and failed outcomes.
	Kind     string
	Attempts int
	// Items is the batch size for BATCH events.
	Items int
	Dur   time.Duration
	// Note lets emitters attach low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageBatch:
		if e.Items < 0 {
			return errors.New("batch items must be >= 0")
		}
	case StageItemDone:
		if e.URL == "" {
			return errors.New("item event requires url")
		}
		if e.Outcome == "" {
			return errors.New("item event requires outcome")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
