package metrics

import (
	"io"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/fpang/optimize-images/internal/pipeline"
	"github.com/fpang/optimize-images/internal/transcode"
)

// RunObserver is a pipeline.Observer that flushes one EMF line with the run
// totals when the run finishes.
type RunObserver struct {
	pipeline.NopObserver

	runID    string
	dryRun   bool
	out      io.Writer
	byFormat map[string]int
}

// NewRunObserver creates a RunObserver writing to out.
func NewRunObserver(out io.Writer, runID string, dryRun bool) *RunObserver {
	return &RunObserver{
		runID:    runID,
		dryRun:   dryRun,
		out:      out,
		byFormat: make(map[string]int),
	}
}

func (o *RunObserver) TaskFinished(task transcode.Task, res transcode.Result) {
	if res.Status == transcode.StatusSuccess {
		o.byFormat[string(task.Format.Canonical())]++
	}
}

func (o *RunObserver) RunFinished(s pipeline.Summary) {
	rec := New(Namespace).WithOutput(o.out).
		Dimension("DryRun", strconv.FormatBool(o.dryRun)).
		Metric("SourceFiles", float64(s.Files), UnitCount).
		Metric("TasksProcessed", float64(s.Processed), UnitCount).
		Metric("TasksSkipped", float64(s.Skipped), UnitCount).
		Metric("TasksFailed", float64(s.Errors), UnitCount).
		Metric("OriginalBytes", float64(s.OriginalBytes), UnitBytes).
		Metric("OptimizedBytes", float64(s.OptimizedBytes), UnitBytes).
		Metric("AverageSavings", s.AverageSavings(), UnitPercent).
		Metric("RunDurationMs", float64(s.Elapsed.Milliseconds()), UnitMilliseconds).
		Property("runId", o.runID).
		Property("outputsByFormat", o.byFormat)

	if err := rec.Flush(); err != nil {
		log.Warn().Err(err).Msg("Failed to emit run metrics")
	}
}
