package pipeline

import (
	"context"
	"iter"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/optimize-images/internal/config"
	"github.com/fpang/optimize-images/internal/filehandler"
	"github.com/fpang/optimize-images/internal/transcode"
)

// Transcoder executes a single task. *transcode.Transcoder satisfies it.
type Transcoder interface {
	Transcode(ctx context.Context, task transcode.Task) transcode.Result
}

// Runner executes a run strictly sequentially: one task completes and is
// recorded before the next starts.
type Runner struct {
	cfg        config.RunConfig
	transcoder Transcoder
	observers  observers
	now        func() time.Time
}

// NewRunner creates a Runner. Observers are notified in the given order.
func NewRunner(cfg config.RunConfig, tr Transcoder, obs ...Observer) *Runner {
	return &Runner{
		cfg:        cfg,
		transcoder: tr,
		observers:  obs,
		now:        time.Now,
	}
}

// Run plans and executes every task for files and returns the finalized
// summary. Cancelling ctx stops the run before the next task; the task in
// flight always completes. Observers get RunFinished in every case.
func (r *Runner) Run(ctx context.Context, files iter.Seq[filehandler.SourceFile]) Summary {
	summary := NewSummary(r.now)

	func() {
		for file := range files {
			if ctx.Err() != nil {
				return
			}

			tasks := Plan(file, r.cfg)
			summary.Files++
			r.observers.FileStarted(file, tasks)

			for _, task := range tasks {
				if ctx.Err() != nil {
					return
				}
				res := r.transcoder.Transcode(ctx, task)
				summary.Record(res)
				r.observers.TaskFinished(task, res)
			}
		}
	}()

	if err := ctx.Err(); err != nil {
		log.Warn().Err(err).
			Int("files", summary.Files).
			Int("tasks", summary.Tasks()).
			Msg("Run interrupted, remaining tasks not attempted")
	}

	final := summary.Finalize()
	r.observers.RunFinished(final)

	log.Debug().
		Int("files", final.Files).
		Int("processed", final.Processed).
		Int("skipped", final.Skipped).
		Int("errors", final.Errors).
		Dur("elapsed", final.Elapsed).
		Msg("Run finished")

	return final
}
