package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/xfix/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart},
		{RunID: runID, TS: now, Stage: progress.StageBatch, Items: 2},
		{
			RunID:      runID,
			TS:         now.Add(5 * time.Second),
			Stage:      progress.StageItemDone,
			BookmarkID: 1,
			URL:        "https://x.com/a/status/1",
			Outcome:    progress.OutcomeEnriched,
			Dur:        3 * time.Second,
		},
		{
			RunID:      runID,
			TS:         now.Add(9 * time.Second),
			Stage:      progress.StageItemDone,
			BookmarkID: 2,
			URL:        "https://x.com/a/status/2",
			Outcome:    progress.OutcomeRetry,
			Kind:       "rate_limit",
			Attempts:   1,
			Dur:        time.Second,
		},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.running))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.items.WithLabelValues("enriched", "none")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.items.WithLabelValues("retry", "rate_limit")))
	require.Equal(t, 2, testutil.CollectAndCount(sink.itemDuration, "xfix_item_duration_seconds"))
	require.Equal(t, 1, testutil.CollectAndCount(sink.batchItems, "xfix_batch_items"))

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: now.Add(time.Minute), Stage: progress.StageRunDone},
	}))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.running))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("error")))
}

func TestPrometheusSinkRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
