// Package worker implements the enrichment loop: long-poll the bookmark
// store, fetch each eligible post, enrich it, and write the result back.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/xfix/internal/clipjot"
	"github.com/JakeFAU/xfix/internal/enrich"
	"github.com/JakeFAU/xfix/internal/policy/ratelimit"
	"github.com/JakeFAU/xfix/internal/progress"
	"github.com/JakeFAU/xfix/internal/state"
	"github.com/JakeFAU/xfix/internal/xfix"
)

// State is the orchestrator's lifecycle state.
type State string

// Orchestrator states.
const (
	StateIdle         State = "idle"
	StateSyncing      State = "syncing"
	StateProcessing   State = "processing"
	StateShuttingDown State = "shutting_down"
	StateStopped      State = "stopped"
)

// Pacer spaces fetches and exposes its backoff for persistence.
type Pacer interface {
	xfix.Pacer
	Snapshot() ratelimit.Backoff
}

// StateStore is the subset of *state.Store used by the loop.
type StateStore interface {
	Cursor() *string
	SetCursor(cursor string) error
	RecordError(url string, bookmarkID int64, kind xfix.FetchKind, maxAttempts int) (retry bool, attempts int)
	RecordSuccess(url string)
	IsFailed(url string) bool
	SetBackoff(b state.Backoff)
	Save() error
	Summary() string
}

// Config controls Orchestrator behavior.
type Config struct {
	MaxAttempts    int
	SyncLimit      int
	LoopErrorSleep time.Duration
	DryRun         bool
	// Verbose echoes generated titles and comments to the log.
	Verbose bool
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Bookmarks xfix.BookmarkStore
	Fetcher   xfix.Fetcher
	Enricher  xfix.Enricher
	Pacer     Pacer
	State     StateStore
	Emitter   progress.Emitter
	Clock     xfix.Clock
	RunID     uuid.UUID
	Logger    *zap.Logger
}

// Orchestrator runs the sync, fetch, enrich, write-back loop. Items are
// processed one at a time in batch order.
type Orchestrator struct {
	deps Deps
	cfg  Config

	state    atomic.Value
	stop     chan struct{}
	stopOnce sync.Once
}

// New constructs an Orchestrator.
func New(deps Deps, cfg Config) (*Orchestrator, error) {
	if deps.Bookmarks == nil || deps.Fetcher == nil || deps.Enricher == nil {
		return nil, errors.New("bookmarks, fetcher and enricher are required")
	}
	if deps.Pacer == nil || deps.State == nil || deps.Clock == nil {
		return nil, errors.New("pacer, state and clock are required")
	}
	if deps.Emitter == nil {
		deps.Emitter = progress.Discard
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = state.DefaultMaxAttempts
	}
	if cfg.SyncLimit <= 0 {
		cfg.SyncLimit = 50
	}
	if cfg.LoopErrorSleep <= 0 {
		cfg.LoopErrorSleep = 10 * time.Second
	}
	o := &Orchestrator{
		deps: deps,
		cfg:  cfg,
		stop: make(chan struct{}),
	}
	o.state.Store(StateIdle)
	return o, nil
}

// State reports the current lifecycle state.
func (o *Orchestrator) State() State {
	return o.state.Load().(State)
}

// Shutdown asks the loop to stop. The item in flight finishes first; a
// pending long-poll or pacing wait is abandoned. Safe to call repeatedly.
func (o *Orchestrator) Shutdown() {
	o.stopOnce.Do(func() {
		close(o.stop)
	})
}

func (o *Orchestrator) stopping() bool {
	select {
	case <-o.stop:
		return true
	default:
		return false
	}
}

// Run blocks until Shutdown is called or ctx ends. Loop errors are logged
// and retried after a fixed sleep; only the final state save can fail Run.
func (o *Orchestrator) Run(ctx context.Context) error {
	started := o.deps.Clock.Now()
	o.emit(progress.Event{Stage: progress.StageRunStart})
	o.deps.Logger.Info("agent loop started",
		zap.String("run_id", o.deps.RunID.String()),
		zap.Bool("dry_run", o.cfg.DryRun),
	)

	for !o.stopping() && ctx.Err() == nil {
		o.setState(StateSyncing)
		if err := o.iterate(ctx); err != nil {
			if o.stopping() || ctx.Err() != nil {
				break
			}
			o.deps.Logger.Error("loop iteration failed",
				zap.Error(err),
				zap.Duration("sleep", o.cfg.LoopErrorSleep),
			)
			o.setState(StateIdle)
			o.sleep(ctx, o.cfg.LoopErrorSleep)
		}
	}

	o.setState(StateShuttingDown)
	o.persistBackoff()
	err := o.deps.State.Save()
	o.setState(StateStopped)

	evt := progress.Event{Stage: progress.StageRunDone, Dur: o.deps.Clock.Now().Sub(started)}
	if err != nil {
		evt.Stage = progress.StageRunError
		evt.Note = err.Error()
	}
	o.emit(evt)
	if err != nil {
		return fmt.Errorf("final state save: %w", err)
	}
	o.deps.Logger.Info("agent loop stopped", zap.String("state", o.deps.State.Summary()))
	return nil
}

// iterate runs one sync and processes the eligible items of its batch.
func (o *Orchestrator) iterate(ctx context.Context) error {
	soft, cancel := o.softContext(ctx)
	defer cancel()

	cursor := o.deps.State.Cursor()
	page, err := o.deps.Bookmarks.Sync(soft, cursor, o.cfg.SyncLimit, true)
	if err != nil {
		return fmt.Errorf("sync bookmarks: %w", err)
	}
	if page.Cursor != nil && (cursor == nil || *cursor != *page.Cursor) {
		if err := o.deps.State.SetCursor(*page.Cursor); err != nil {
			return fmt.Errorf("persist cursor: %w", err)
		}
	}

	eligible := clipjot.Eligible(page.Bookmarks)
	o.emit(progress.Event{Stage: progress.StageBatch, Items: len(eligible)})
	o.deps.Logger.Debug("sync batch",
		zap.Int("received", len(page.Bookmarks)),
		zap.Int("eligible", len(eligible)),
		zap.Bool("has_more", page.HasMore),
		zap.Bool("waited", page.Waited),
	)

	o.setState(StateProcessing)
	for _, bm := range eligible {
		if o.stopping() || ctx.Err() != nil {
			return nil
		}
		o.processItem(ctx, soft, bm)
	}
	o.setState(StateIdle)
	return nil
}

// processItem handles one bookmark. soft is canceled by Shutdown and only
// guards the pacing wait; the item itself runs on ctx.
func (o *Orchestrator) processItem(ctx, soft context.Context, bm xfix.Bookmark) {
	logger := o.deps.Logger.With(zap.String("url", bm.URL), zap.Int64("bookmark_id", bm.ID))
	if o.deps.State.IsFailed(bm.URL) {
		logger.Info("skipping permanently failed url")
		o.emitItem(bm, progress.OutcomeSkipped, "", 0, 0)
		return
	}
	needs := clipjot.NeedsEnrichment(bm)

	if err := o.deps.Pacer.Wait(soft); err != nil {
		return
	}
	started := o.deps.Clock.Now()

	content, err := o.deps.Fetcher.Fetch(ctx, bm.URL)
	if err != nil {
		o.recordFailure(logger, bm, err, true, started)
		return
	}
	o.deps.Pacer.RecordSuccess()

	enrichment, err := o.deps.Enricher.Enrich(ctx, content)
	if err != nil {
		// Timeouts too are recorded as ollama and never escalate the fetch backoff.
		o.recordFailure(logger, bm, xfix.NewFetchError(xfix.KindEnrichment, "", "enrichment failed", err), false, started)
		return
	}

	edit := buildEdit(bm.ID, needs, content, enrichment)
	if o.cfg.Verbose {
		if edit.Title != nil {
			fields := []zap.Field{zap.String("title", *edit.Title)}
			if needs.ReplacingTitle {
				fields = append(fields, zap.String("replacing", needs.ExistingTitle))
			}
			logger.Info("generated title", fields...)
		}
		if edit.Comment != nil {
			logger.Info("generated comment", zap.String("comment", *edit.Comment))
		}
	}

	outcome := progress.OutcomeEnriched
	switch {
	case edit.Title == nil && edit.Comment == nil:
		outcome = progress.OutcomeSkipped
		logger.Info("nothing to write back")
	case o.cfg.DryRun:
		outcome = progress.OutcomeDryRun
		logger.Info("dry run, skipping write-back")
	default:
		if _, err := o.deps.Bookmarks.Edit(ctx, edit); err != nil {
			o.recordFailure(logger, bm, xfix.NewFetchError(xfix.KindNetwork, "", "write-back failed", err), false, started)
			return
		}
		logger.Info("bookmark enriched",
			zap.Bool("title", edit.Title != nil),
			zap.Bool("comment", edit.Comment != nil),
		)
	}

	o.deps.State.RecordSuccess(bm.URL)
	o.persist(logger)
	o.emitItem(bm, outcome, "", 0, o.deps.Clock.Now().Sub(started))
}

// recordFailure books a per-item failure. Only fetch failures of a
// backoff-triggering kind escalate the pacer.
func (o *Orchestrator) recordFailure(logger *zap.Logger, bm xfix.Bookmark, err error, fetchStage bool, started time.Time) {
	kind := xfix.KindOf(err)
	var delay time.Duration
	if fetchStage && kind.TriggersBackoff() {
		delay = o.deps.Pacer.RecordError()
	}
	retry, attempts := o.deps.State.RecordError(bm.URL, bm.ID, kind, o.cfg.MaxAttempts)
	o.persist(logger)

	fields := []zap.Field{
		zap.String("kind", string(kind)),
		zap.Int("attempts", attempts),
		zap.Error(err),
	}
	if delay > 0 {
		fields = append(fields, zap.Duration("delay", delay))
	}
	outcome := progress.OutcomeRetry
	if retry {
		logger.Info("item failed, will retry", fields...)
	} else {
		outcome = progress.OutcomeFailed
		logger.Error("item permanently failed", fields...)
	}
	o.emitItem(bm, outcome, kind, attempts, o.deps.Clock.Now().Sub(started))
}

func (o *Orchestrator) persist(logger *zap.Logger) {
	o.persistBackoff()
	if err := o.deps.State.Save(); err != nil {
		logger.Error("save state failed", zap.Error(err))
	}
}

func (o *Orchestrator) persistBackoff() {
	snap := o.deps.Pacer.Snapshot()
	o.deps.State.SetBackoff(state.Backoff{
		CurrentDelay:   snap.Delay.Seconds(),
		FibonacciIndex: snap.Index,
	})
}

// buildEdit writes only the fields the bookmark was missing.
func buildEdit(id int64, needs clipjot.Needs, content xfix.Content, e xfix.Enrichment) xfix.BookmarkEdit {
	edit := xfix.BookmarkEdit{ID: id}
	if needs.Title && e.Title != nil {
		title := *e.Title
		edit.Title = &title
	}
	if needs.Comment {
		summary := ""
		if e.Summary != nil {
			summary = *e.Summary
		}
		comment := enrich.RenderComment(summary, content)
		edit.Comment = &comment
	}
	return edit
}

func (o *Orchestrator) softContext(ctx context.Context) (context.Context, context.CancelFunc) {
	soft, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-o.stop:
			cancel()
		case <-soft.Done():
		}
	}()
	return soft, cancel
}

func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-o.stop:
	}
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(s)
}

func (o *Orchestrator) emit(evt progress.Event) {
	evt.RunID = progress.UUIDToBytes(o.deps.RunID)
	evt.TS = o.deps.Clock.Now()
	o.deps.Emitter.Emit(evt)
}

func (o *Orchestrator) emitItem(bm xfix.Bookmark, outcome progress.Outcome, kind xfix.FetchKind, attempts int, dur time.Duration) {
	o.emit(progress.Event{
		Stage:      progress.StageItemDone,
		BookmarkID: bm.ID,
		URL:        bm.URL,
		Outcome:    outcome,
		Kind:       string(kind),
		Attempts:   attempts,
		Dur:        dur,
	})
}
