package report

import (
	"io"

	"github.com/schollz/progressbar/v3"

	"chatwatch/internal/domain"
)

// BatchProgress renders a terminal progress bar per classification batch.
// Batches can end early on cancellation, so a new bar is started whenever a
// batch begins rather than when the previous one reports completion.
type BatchProgress struct {
	description string
	w           io.Writer
	bar         *progressbar.ProgressBar
}

func NewBatchProgress(description string, w io.Writer) *BatchProgress {
	return &BatchProgress{description: description, w: w}
}

// Step advances the bar. The signature matches the aggregator's progress
// hook: done is 1-based within the current batch.
func (b *BatchProgress) Step(done, total int, ins *domain.Insight) {
	if b.bar == nil || done == 1 {
		b.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription(b.description),
			progressbar.OptionSetWriter(b.w),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = b.bar.Set(done)
	if done >= total {
		_ = b.bar.Finish()
		b.bar = nil
	}
}
