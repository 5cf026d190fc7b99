package monitor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"chatwatch/internal/dedup"
	"chatwatch/internal/domain"
	"chatwatch/internal/metrics"
	"chatwatch/internal/scenario"
)

// Runner drives complete scans: one history pass over a set of groups, or a
// live monitor loop. Groups are processed one after another; each failure
// below the session level (unmapped group, chat not found, classification
// error) is contained to its own item and reported, never fatal.
type Runner struct {
	tracker    *dedup.Tracker
	dispatch   *scenario.Dispatch
	aggregator *Aggregator
	counters   *metrics.Session
	sinks      []domain.InsightSink
	logger     *slog.Logger
}

func NewRunner(tracker *dedup.Tracker, dispatch *scenario.Dispatch, aggregator *Aggregator, counters *metrics.Session, sinks []domain.InsightSink, logger *slog.Logger) *Runner {
	return &Runner{
		tracker:    tracker,
		dispatch:   dispatch,
		aggregator: aggregator,
		counters:   counters,
		sinks:      sinks,
		logger:     logger,
	}
}

// ScanHistory scans a bounded history window of every group and classifies
// everything extracted. Groups without a scenario and groups whose chat
// cannot be opened are skipped with a warning. The returned insights span
// all groups in processing order; they are also emitted to the sinks.
func (r *Runner) ScanHistory(ctx context.Context, groups []string, scrolls, limit int) ([]domain.Insight, error) {
	var all []domain.Insight
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		sc, ok := r.dispatch.ScenarioFor(group)
		if !ok {
			r.counters.GroupsSkipped.Add(1)
			r.logger.Warn("no scenario configured for group, skipping", "group", group)
			continue
		}

		msgs, err := r.tracker.ScanHistory(ctx, group, scrolls)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			if errors.Is(err, domain.ErrChatNotFound) {
				r.counters.GroupsSkipped.Add(1)
				r.logger.Warn("chat could not be opened, skipping group", "group", group, "err", err)
				continue
			}
			// Anything else means the session itself is broken.
			return all, err
		}
		r.counters.ScansRun.Add(1)
		r.counters.MessagesExtracted.Add(int64(len(msgs)))

		insights, err := r.aggregator.Analyze(ctx, msgs, group, sc, limit)
		r.emit(ctx, insights)
		all = append(all, insights...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

// Monitor seeds every group's history without classifying, then polls for
// new messages every interval until ctx is cancelled. Insights found before
// cancellation are returned, not discarded.
func (r *Runner) Monitor(ctx context.Context, groups []string, seedScrolls int, interval time.Duration) ([]domain.Insight, error) {
	r.logger.Info("seeding existing messages", "groups", len(groups))
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, ok := r.dispatch.ScenarioFor(group); !ok {
			r.logger.Warn("no scenario configured for group, not monitoring", "group", group)
			continue
		}
		if _, err := r.tracker.ScanHistory(ctx, group, seedScrolls); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, domain.ErrChatNotFound) {
				r.logger.Warn("chat could not be opened for seeding", "group", group, "err", err)
				continue
			}
			return nil, err
		}
	}
	r.logger.Info("seeding complete, monitoring", "interval", interval)

	var all []domain.Insight
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	cycle := 0
	for {
		cycle++
		insights, err := r.pollOnce(ctx, groups, cycle)
		all = append(all, insights...)
		if err != nil {
			return all, err
		}

		select {
		case <-ctx.Done():
			return all, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) pollOnce(ctx context.Context, groups []string, cycle int) ([]domain.Insight, error) {
	r.logger.Info("poll cycle", "cycle", cycle)

	var all []domain.Insight
	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		sc, ok := r.dispatch.ScenarioFor(group)
		if !ok {
			continue // already warned during seeding
		}

		fresh, err := r.tracker.ScanNew(ctx, group)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			if errors.Is(err, domain.ErrChatNotFound) {
				r.counters.GroupsSkipped.Add(1)
				r.logger.Warn("chat could not be opened, skipping this cycle", "group", group, "err", err)
				continue
			}
			return all, err
		}
		r.counters.ScansRun.Add(1)
		r.counters.NewMessages.Add(int64(len(fresh)))

		if len(fresh) == 0 {
			r.logger.Debug("no new messages", "group", group)
			continue
		}
		r.logger.Info("new messages", "group", group, "count", len(fresh))

		insights, err := r.aggregator.Analyze(ctx, fresh, group, sc, 0)
		r.emit(ctx, insights)
		all = append(all, insights...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}

func (r *Runner) emit(ctx context.Context, insights []domain.Insight) {
	for _, ins := range insights {
		for _, sink := range r.sinks {
			if err := sink.Emit(ctx, ins); err != nil {
				r.logger.Warn("insight sink failed", "err", err)
			}
		}
	}
}
