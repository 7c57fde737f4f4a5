// Package postprocess runs the secondary minification pass over encoded
// images: quality-aware recompression for JPEG, palette quantization for PNG,
// lossless re-serialization for GIF and markup minification for SVG.
//
// WebP and AVIF output is already final and passes through untouched.
// Failures never lose the encoded image: Apply falls back to its input.
package postprocess

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fpang/optimize-images/internal/filehandler"
)

// DegradedError reports a post-process failure that was absorbed by keeping
// the pre-minification bytes.
type DegradedError struct {
	Format filehandler.Format
	Err    error
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("post-process degraded for %s: %v", e.Format, e.Err)
}

func (e *DegradedError) Unwrap() error {
	return e.Err
}

// Minifiable reports whether format has a secondary pass.
func Minifiable(format filehandler.Format) bool {
	switch format.Canonical() {
	case filehandler.FormatJPEG, filehandler.FormatPNG, filehandler.FormatGIF, filehandler.FormatSVG:
		return true
	}
	return false
}

// Process runs the secondary pass for format. The result is never larger
// than data; formats without a pass return data unchanged.
func Process(data []byte, format filehandler.Format, quality int) ([]byte, error) {
	if !Minifiable(format) {
		return data, nil
	}
	switch format.Canonical() {
	case filehandler.FormatJPEG:
		return recompressJPEG(data, quality)
	case filehandler.FormatPNG:
		return quantizePNG(data)
	case filehandler.FormatGIF:
		return optimizeGIF(data)
	default:
		return minifySVG(data)
	}
}

// Apply is Process with degradation: on error the input is returned and a
// warning is logged. It satisfies transcode.PostProcessor.
func Apply(data []byte, format filehandler.Format, quality int) []byte {
	out, err := Process(data, format, quality)
	if err != nil {
		degraded := &DegradedError{Format: format, Err: err}
		log.Warn().
			Err(degraded).
			Str("format", string(format)).
			Int("size", len(data)).
			Msg("Post-process failed, keeping encoded bytes")
		return data
	}

	if len(out) < len(data) {
		log.Debug().
			Str("format", string(format)).
			Int("before", len(data)).
			Int("after", len(out)).
			Msg("Post-process reduced size")
	}
	return out
}

// smaller returns candidate when it beats original, else original.
func smaller(original, candidate []byte) []byte {
	if len(candidate) > 0 && len(candidate) < len(original) {
		return candidate
	}
	return original
}
