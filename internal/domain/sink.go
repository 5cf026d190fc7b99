package domain

import "context"

// InsightSink receives surfaced insights as they are produced (console,
// notifier, archive). Sink failures are reported to the caller but never
// abort a scan.
type InsightSink interface {
	Emit(ctx context.Context, ins Insight) error
}
