package manifest

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fpang/optimize-images/internal/pipeline"
	"github.com/fpang/optimize-images/internal/transcode"
)

// Observer records pipeline outputs into a Manifest. Dry runs record nothing.
type Observer struct {
	pipeline.NopObserver

	m         *Manifest
	outputDir string
	dryRun    bool
}

// NewObserver creates an Observer for m.
func NewObserver(m *Manifest, outputDir string, dryRun bool) *Observer {
	return &Observer{m: m, outputDir: outputDir, dryRun: dryRun}
}

func (o *Observer) TaskFinished(task transcode.Task, res transcode.Result) {
	if o.dryRun {
		return
	}

	rel, err := filepath.Rel(o.outputDir, res.OutputPath)
	if err != nil {
		log.Warn().Err(err).Str("output", res.OutputPath).Msg("Output outside output directory, not recorded")
		return
	}
	rel = filepath.ToSlash(rel)

	switch res.Status {
	case transcode.StatusSuccess:
		o.m.Put(Entry{
			Source:         task.Source.RelPath,
			Output:         rel,
			Format:         string(task.Format),
			Width:          task.Width,
			OriginalSize:   res.OriginalSize,
			OptimizedSize:  res.OptimizedSize,
			SavingsPercent: res.SavingsPercent,
		})
	case transcode.StatusSkipped:
		// Outputs produced before the cache was enabled are adopted so they
		// can still be published.
		if o.m.Has(rel) {
			return
		}
		info, err := os.Stat(res.OutputPath)
		if err != nil {
			return
		}
		o.m.Put(Entry{
			Source:        task.Source.RelPath,
			Output:        rel,
			Format:        string(task.Format),
			Width:         task.Width,
			OptimizedSize: info.Size(),
			GeneratedAt:   info.ModTime(),
		})
	}
}
