// Package metrics counts what a scanning session did. Counters are cheap
// in-process instrumentation, logged at shutdown; there is no exposition
// endpoint.
package metrics

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Session aggregates the counters of one scan or monitor run.
type Session struct {
	ScansRun          atomic.Int64
	MessagesExtracted atomic.Int64
	NewMessages       atomic.Int64
	Classifications   atomic.Int64
	ClassifyFailures  atomic.Int64
	InsightsSurfaced  atomic.Int64
	GroupsSkipped     atomic.Int64

	started time.Time
}

func NewSession() *Session {
	return &Session{started: time.Now()}
}

// Uptime returns how long the session has been running.
func (s *Session) Uptime() time.Duration {
	return time.Since(s.started)
}

// Snapshot returns the counter values as a map, for logging and tests.
func (s *Session) Snapshot() map[string]int64 {
	return map[string]int64{
		"scans_run":          s.ScansRun.Load(),
		"messages_extracted": s.MessagesExtracted.Load(),
		"new_messages":       s.NewMessages.Load(),
		"classifications":    s.Classifications.Load(),
		"classify_failures":  s.ClassifyFailures.Load(),
		"insights_surfaced":  s.InsightsSurfaced.Load(),
		"groups_skipped":     s.GroupsSkipped.Load(),
	}
}

// LogSummary writes the final counter values.
func (s *Session) LogSummary(logger *slog.Logger) {
	attrs := []any{"uptime", s.Uptime().Round(time.Second)}
	for k, v := range s.Snapshot() {
		attrs = append(attrs, k, v)
	}
	logger.Info("session counters", attrs...)
}
