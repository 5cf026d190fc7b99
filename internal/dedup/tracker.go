package dedup

import (
	"context"
	"fmt"
	"log/slog"

	"chatwatch/internal/domain"
)

// Tracker is the incremental scan controller: it turns a full-extraction
// source (which always yields everything currently visible) into "return
// only what this tracker has never seen" semantics. It exclusively owns its
// seen-set; no other component reads or writes it.
type Tracker struct {
	src    domain.MessageSource
	seen   *SeenSet
	logger *slog.Logger
}

func NewTracker(src domain.MessageSource, logger *slog.Logger) *Tracker {
	return &Tracker{
		src:    src,
		seen:   NewSeenSet(),
		logger: logger,
	}
}

// ScanHistory runs a baseline pass: load a bounded window of history, mark
// every message as seen, and return all of them. Callers decide whether the
// returned window is classified (one-shot history scan) or discarded (live
// monitor seeding). A second baseline over the same window adds nothing new.
func (t *Tracker) ScanHistory(ctx context.Context, chatID string, scrolls int) ([]domain.RawMessage, error) {
	msgs, err := t.src.LoadHistory(ctx, chatID, scrolls)
	if err != nil {
		return nil, fmt.Errorf("load history for %q: %w", chatID, err)
	}
	for _, m := range msgs {
		t.seen.Insert(FingerprintOf(m))
	}
	t.logger.Debug("baseline scan complete",
		"chat", chatID, "messages", len(msgs), "seen_total", t.seen.Len())
	return msgs, nil
}

// ScanNew runs an incremental pass: extract the currently visible messages
// and return only those never seen before, in the source's yield order.
// A fingerprint returned once is never returned again for the lifetime of
// this tracker, no matter how often the source re-yields the same-looking
// message. Extraction failures propagate; skip-and-continue is the caller's
// batch-level decision.
func (t *Tracker) ScanNew(ctx context.Context, chatID string) ([]domain.RawMessage, error) {
	msgs, err := t.src.ExtractVisible(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("extract visible for %q: %w", chatID, err)
	}

	var fresh []domain.RawMessage
	for _, m := range msgs {
		fp := FingerprintOf(m)
		if t.seen.Contains(fp) {
			continue
		}
		t.seen.Insert(fp)
		fresh = append(fresh, m)
	}

	t.logger.Debug("incremental scan complete",
		"chat", chatID, "visible", len(msgs), "new", len(fresh))
	return fresh, nil
}
