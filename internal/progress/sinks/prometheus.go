package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/xfix/internal/progress"
)

// PrometheusSink exports run and per-item outcome metrics.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	running       prometheus.Gauge

	items        *prometheus.CounterVec
	itemDuration *prometheus.HistogramVec
	batchItems   prometheus.Histogram
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "xfix_runs_started_total",
			Help: "Total agent runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xfix_runs_completed_total",
			Help: "Total agent runs completed partitioned by result.",
		}, []string{"result"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "xfix_running",
			Help: "1 while the agent loop is running.",
		}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "xfix_items_total",
			Help: "Processed bookmarks partitioned by outcome and failure kind.",
		}, []string{"outcome", "kind"}),
		itemDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "xfix_item_duration_seconds",
			Help:    "Wall time to process one bookmark, excluding pacing.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"outcome"}),
		batchItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "xfix_batch_items",
			Help:    "Eligible bookmarks per sync batch.",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.running,
		s.items,
		s.itemDuration,
		s.batchItems,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		s.running.Set(1)
	case progress.StageRunDone:
		s.runsCompleted.WithLabelValues("success").Inc()
		s.running.Set(0)
	case progress.StageRunError:
		s.runsCompleted.WithLabelValues("error").Inc()
		s.running.Set(0)
	case progress.StageBatch:
		s.batchItems.Observe(float64(evt.Items))
	case progress.StageItemDone:
		kind := evt.Kind
		if kind == "" {
			kind = "none"
		}
		s.items.WithLabelValues(string(evt.Outcome), kind).Inc()
		if evt.Dur > 0 {
			s.itemDuration.WithLabelValues(string(evt.Outcome)).Observe(evt.Dur.Seconds())
		}
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
