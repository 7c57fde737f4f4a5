// Package pipeline drives a run: it expands every discovered source file into
// explicit transcode tasks, executes them one at a time, and folds the results
// into a Summary while notifying observers.
package pipeline

import (
	"github.com/fpang/optimize-images/internal/config"
	"github.com/fpang/optimize-images/internal/filehandler"
	"github.com/fpang/optimize-images/internal/transcode"
)

// Plan returns the tasks for one source file: every target format crossed
// with the original size followed by each configured width.
//
// The source's own format is appended as a pass-through target when it is not
// already configured (compared canonically, so jpg and jpeg are the same), so
// a photo.png with formats=webp also yields optimized png variants.
func Plan(file filehandler.SourceFile, cfg config.RunConfig) []transcode.Task {
	formats := TargetFormats(file, cfg.Formats)

	tasks := make([]transcode.Task, 0, len(formats)*(len(cfg.Widths)+1))
	for _, format := range formats {
		tasks = append(tasks, transcode.Task{Source: file, Format: format})
		for _, w := range cfg.Widths {
			tasks = append(tasks, transcode.Task{Source: file, Format: format, Width: w})
		}
	}
	return tasks
}

// TargetFormats returns configured plus the source format when it is missing.
func TargetFormats(file filehandler.SourceFile, configured []filehandler.Format) []filehandler.Format {
	formats := make([]filehandler.Format, 0, len(configured)+1)
	formats = append(formats, configured...)

	if file.Format == "" {
		return formats
	}
	for _, f := range configured {
		if f.Canonical() == file.Format.Canonical() {
			return formats
		}
	}
	return append(formats, file.Format)
}
