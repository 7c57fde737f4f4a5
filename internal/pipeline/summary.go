package pipeline

import (
	"time"

	"github.com/fpang/optimize-images/internal/transcode"
)

// Summary accumulates run totals. Only the Runner records into it; observers
// receive finalized copies.
type Summary struct {
	Files     int
	Processed int
	Skipped   int
	Errors    int

	// SavingsSum is the sum of per-task savings percentages over processed tasks.
	SavingsSum     float64
	OriginalBytes  int64
	OptimizedBytes int64

	Started time.Time
	Elapsed time.Duration

	last time.Time
	now  func() time.Time
}

// NewSummary starts a summary at now(). A nil clock uses time.Now.
func NewSummary(now func() time.Time) *Summary {
	if now == nil {
		now = time.Now
	}
	return &Summary{Started: now(), now: now}
}

// Record folds one task result into the totals.
func (s *Summary) Record(res transcode.Result) {
	switch res.Status {
	case transcode.StatusFailed:
		s.Errors++
	case transcode.StatusSkipped:
		s.Skipped++
	case transcode.StatusSuccess:
		s.Processed++
		s.SavingsSum += res.SavingsPercent
		s.OriginalBytes += res.OriginalSize
		s.OptimizedBytes += res.OptimizedSize
	}
	s.last = s.now()
}

// Finalize fixes the elapsed time, measured to the last recorded result, or to
// now when nothing was recorded, and returns a copy.
func (s *Summary) Finalize() Summary {
	end := s.last
	if end.IsZero() {
		end = s.now()
	}
	s.Elapsed = end.Sub(s.Started)
	return *s
}

// Tasks is the number of recorded results.
func (s Summary) Tasks() int {
	return s.Processed + s.Skipped + s.Errors
}

// AverageSavings is the mean savings percentage of processed tasks, or 0
// when nothing was processed.
func (s Summary) AverageSavings() float64 {
	if s.Processed == 0 {
		return 0
	}
	return s.SavingsSum / float64(s.Processed)
}
