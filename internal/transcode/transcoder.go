package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fpang/optimize-images/internal/config"
	"github.com/fpang/optimize-images/internal/filehandler"
)

// PostProcessor runs the secondary compression pass over encoded bytes.
// It must never fail: on error it returns its input unchanged.
type PostProcessor func(data []byte, format filehandler.Format, quality int) []byte

// Transcoder executes tasks against one resolved configuration.
type Transcoder struct {
	outputDir    string
	quality      int
	skipExisting bool
	dryRun       bool
	postProcess  PostProcessor
}

// New creates a Transcoder for cfg. post may be nil to disable the
// secondary compression pass.
func New(cfg config.RunConfig, post PostProcessor) *Transcoder {
	if post == nil {
		post = func(data []byte, _ filehandler.Format, _ int) []byte { return data }
	}
	return &Transcoder{
		outputDir:    cfg.OutputDir,
		quality:      cfg.Quality,
		skipExisting: cfg.SkipExisting,
		dryRun:       cfg.DryRun,
		postProcess:  post,
	}
}

// Transcode runs one task to completion and reports its outcome.
//
// The skip-existing check happens before the source is read, so skipping is
// a single stat call. In dry-run mode the full decode/encode/post-process path
// still runs to measure the projected size, but nothing is written.
// Partially written outputs from an interrupted run are not detected: any
// existing file at the output path counts as done.
func (t *Transcoder) Transcode(ctx context.Context, task Task) (res Result) {
	out := OutputPath(t.outputDir, task)

	if t.skipExisting && exists(out) {
		log.Debug().Str("output", out).Msg("Output already exists, skipping")
		return Skipped(out)
	}

	if err := ctx.Err(); err != nil {
		return Failed(out, err)
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("source", task.Source.Path).
				Str("format", string(task.Format)).
				Interface("panic", r).
				Msg("Codec panicked")
			res = Failed(out, fmt.Errorf("%w: codec panic: %v", ErrEncode, r))
		}
	}()

	data, err := t.render(task)
	if err != nil {
		return Failed(out, err)
	}

	data = t.postProcess(data, task.Format, t.quality)

	if !t.dryRun {
		if err := writeOutput(out, data); err != nil {
			return Failed(out, err)
		}
	}

	originalSize := sourceSize(task.Source)
	result := Succeeded(out, originalSize, int64(len(data)))

	log.Debug().
		Str("source", task.Source.RelPath).
		Str("output", out).
		Str("format", string(task.Format)).
		Int("width", task.Width).
		Int64("original_size", originalSize).
		Int64("optimized_size", result.OptimizedSize).
		Float64("savings_percent", result.SavingsPercent).
		Bool("dry_run", t.dryRun).
		Msg("Task complete")

	return result
}

// render produces the encoded bytes for a task, before post-processing.
func (t *Transcoder) render(task Task) ([]byte, error) {
	if task.Format.IsVector() {
		return renderVector(task)
	}
	if !Encodable(task.Format) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, task.Format)
	}

	data, err := os.ReadFile(task.Source.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrDecode, task.Source.Path, err)
	}

	img, err := decodeImage(data, task.Source.Format)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, task.Source.RelPath, err)
	}

	if task.Width > 0 {
		img = filehandler.FitWidth(img, task.Width)
	}

	encoded, err := encodeImage(img, task.Format, t.quality)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFormat) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s to %s: %v", ErrEncode, task.Source.RelPath, task.Format, err)
	}
	return encoded, nil
}

// renderVector handles svg pass-through. Vector output scales without loss,
// so the width only affects the file name and the markup is passed through
// to the post-processor as is.
func renderVector(task Task) ([]byte, error) {
	if !task.Source.Format.IsVector() {
		return nil, fmt.Errorf("%w: cannot vectorize %s source", ErrUnsupportedFormat, task.Source.Format)
	}
	data, err := os.ReadFile(task.Source.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrDecode, task.Source.Path, err)
	}
	return data, nil
}

func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: create directory: %v", ErrWrite, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

// sourceSize re-stats the source at completion time, falling back to the size
// recorded at discovery. 0 means unknown.
func sourceSize(src filehandler.SourceFile) int64 {
	if info, err := os.Stat(src.Path); err == nil {
		return info.Size()
	}
	if src.Size > 0 {
		return src.Size
	}
	return 0
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
