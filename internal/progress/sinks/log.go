package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/xfix/internal/progress"
)

// LogSink emits structured debug logs for each progress event.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
		}
		switch evt.Stage {
		case progress.StageItemDone:
			fields = append(fields,
				zap.Int64("bookmark_id", evt.BookmarkID),
				zap.String("url", evt.URL),
				zap.String("outcome", string(evt.Outcome)),
				zap.String("kind", evt.Kind),
				zap.Int("attempts", evt.Attempts),
			)
		case progress.StageBatch:
			fields = append(fields, zap.Int("items", evt.Items))
		}
		fields = append(fields, zap.Duration("dur", evt.Dur), zap.String("note", evt.Note))
		s.logger.Debug("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
