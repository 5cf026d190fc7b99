// Package monitor orchestrates scanning: it drives the incremental scan
// controller over the configured groups, routes extracted messages to the
// scenario's classifier, and collects structured insights while isolating
// per-item failures.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chatwatch/internal/domain"
	"chatwatch/internal/metrics"
)

// ClassifierProvider hands out the classifier for a scenario. Satisfied by
// classify.Registry.
type ClassifierProvider interface {
	For(sc *domain.Scenario) (domain.Classifier, error)
}

// Aggregator classifies a batch of messages under one scenario,
// sequentially. The classifier is a shared remote service with its own
// queue: one call at a time keeps it responsive and keeps progress output
// meaningfully ordered.
type Aggregator struct {
	registry ClassifierProvider
	counters *metrics.Session
	logger   *slog.Logger

	// OnProgress, when set, is called after each message with the running
	// position and the surfaced insight (nil when the message was skipped
	// or filtered).
	OnProgress func(done, total int, ins *domain.Insight)
}

func NewAggregator(registry ClassifierProvider, counters *metrics.Session, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		registry: registry,
		counters: counters,
		logger:   logger,
	}
}

// Analyze classifies msgs one at a time and returns the surfaced insights in
// input order. A failing classification skips that message only; the rest of
// the batch continues. Cancellation is honored between messages and the
// insights gathered so far are returned alongside ctx.Err().
func (a *Aggregator) Analyze(ctx context.Context, msgs []domain.RawMessage, group string, sc *domain.Scenario, limit int) ([]domain.Insight, error) {
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	cls, err := a.registry.For(sc)
	if err != nil {
		return nil, err
	}

	a.logger.Info("analyzing messages",
		"group", group, "scenario", sc.Name, "count", len(msgs))

	var insights []domain.Insight
	for i, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return insights, err
		}

		res, err := cls.Classify(ctx, msg.Text)
		if err != nil {
			if ctx.Err() != nil {
				return insights, ctx.Err()
			}
			a.counters.ClassifyFailures.Add(1)
			a.logger.Warn("skipping message, classification failed",
				"group", group, "sender", msg.Sender, "err", err)
			a.progress(i+1, len(msgs), nil)
			continue
		}
		a.counters.Classifications.Add(1)

		if !sc.Keeps(res) {
			// Analyzed but scenario-negative: not surfaced.
			a.progress(i+1, len(msgs), nil)
			continue
		}

		ins := domain.Insight{
			ID:         uuid.NewString(),
			Group:      group,
			Sender:     msg.Sender,
			Timestamp:  msg.Timestamp,
			Phone:      msg.Phone,
			Text:       msg.Text,
			Scenario:   sc.Name,
			Confidence: sc.Confidence(res),
			Reasoning:  sc.Reasoning(res),
			Fields:     res,
			ObservedAt: time.Now(),
		}
		insights = append(insights, ins)
		a.counters.InsightsSurfaced.Add(1)
		a.progress(i+1, len(msgs), &ins)
	}

	a.logger.Info("analysis complete",
		"group", group, "analyzed", len(msgs), "surfaced", len(insights))
	return insights, nil
}

func (a *Aggregator) progress(done, total int, ins *domain.Insight) {
	if a.OnProgress != nil {
		a.OnProgress(done, total, ins)
	}
}
