package pipeline

import (
	"github.com/fpang/optimize-images/internal/filehandler"
	"github.com/fpang/optimize-images/internal/transcode"
)

// Observer receives pipeline events in order. Calls happen on the goroutine
// running the pipeline, one at a time.
type Observer interface {
	// FileStarted is called before the first task of a file runs.
	FileStarted(file filehandler.SourceFile, tasks []transcode.Task)
	// TaskFinished is called once per task with its result.
	TaskFinished(task transcode.Task, res transcode.Result)
	// RunFinished is called exactly once with the finalized summary, even
	// when the run was interrupted or found no files.
	RunFinished(summary Summary)
}

// NopObserver implements Observer with no-ops; embed it to handle a subset.
type NopObserver struct{}

func (NopObserver) FileStarted(filehandler.SourceFile, []transcode.Task) {}
func (NopObserver) TaskFinished(transcode.Task, transcode.Result)        {}
func (NopObserver) RunFinished(Summary)                                  {}

type observers []Observer

func (o observers) FileStarted(file filehandler.SourceFile, tasks []transcode.Task) {
	for _, ob := range o {
		ob.FileStarted(file, tasks)
	}
}

func (o observers) TaskFinished(task transcode.Task, res transcode.Result) {
	for _, ob := range o {
		ob.TaskFinished(task, res)
	}
}

func (o observers) RunFinished(summary Summary) {
	for _, ob := range o {
		ob.RunFinished(summary)
	}
}
