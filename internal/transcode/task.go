// Package transcode renders one source image to one output format and width.
//
// A Transcoder executes a single Task at a time and always returns a Result:
// every failure (unsupported format, decode, encode, write, even a codec
// panic) is captured on the Result instead of propagating, so one bad image
// never stops a run.
package transcode

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fpang/optimize-images/internal/filehandler"
)

// Task-level failure categories, matched with errors.Is.
var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrDecode            = errors.New("decode failed")
	ErrEncode            = errors.New("encode failed")
	ErrWrite             = errors.New("write failed")
)

// Task is one unit of work: a source rendered at one format and width.
type Task struct {
	Source filehandler.SourceFile
	Format filehandler.Format
	// Width is the target width in pixels; 0 keeps the original size.
	Width int
}

// SizeLabel renders the width for humans ("640w" or "original").
func (t Task) SizeLabel() string {
	if t.Width > 0 {
		return fmt.Sprintf("%dw", t.Width)
	}
	return "original"
}

// Status tags a Result.
type Status int

const (
	StatusSuccess Status = iota
	StatusSkipped
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of one Task. Exactly one Status applies; the size
// fields are only meaningful for StatusSuccess and Err only for StatusFailed.
type Result struct {
	Status         Status
	OutputPath     string
	OriginalSize   int64
	OptimizedSize  int64
	SavingsPercent float64
	Err            error
}

// Succeeded builds a success result. savings is 0 when originalSize is unknown (<= 0).
func Succeeded(outputPath string, originalSize, optimizedSize int64) Result {
	return Result{
		Status:         StatusSuccess,
		OutputPath:     outputPath,
		OriginalSize:   originalSize,
		OptimizedSize:  optimizedSize,
		SavingsPercent: SavingsPercent(originalSize, optimizedSize),
	}
}

// Skipped builds a result for a pre-existing output.
func Skipped(outputPath string) Result {
	return Result{Status: StatusSkipped, OutputPath: outputPath}
}

// Failed builds a failure result.
func Failed(outputPath string, err error) Result {
	return Result{Status: StatusFailed, OutputPath: outputPath, Err: err}
}

// SavingsPercent is (original - optimized) / original * 100, or 0 when the
// original size is unknown. Negative values mean the output grew.
func SavingsPercent(originalSize, optimizedSize int64) float64 {
	if originalSize <= 0 {
		return 0
	}
	return float64(originalSize-optimizedSize) / float64(originalSize) * 100
}

// OutputPath derives where a task writes its output:
//
//	<outputDir>/<relative dir>/<basename>[-<width>w].<format>
//
// The layout must stay stable between runs for skip-existing to work.
func OutputPath(outputDir string, t Task) string {
	rel := filepath.FromSlash(t.Source.RelPath)
	dir := filepath.Dir(rel)
	base := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))

	name := base + "." + string(t.Format)
	if t.Width > 0 {
		name = fmt.Sprintf("%s-%dw.%s", base, t.Width, t.Format)
	}
	return filepath.Join(outputDir, dir, name)
}
