// Package filehandler discovers source images and handles their geometry.
//
// It owns the image format vocabulary shared by the rest of the module:
//   - Format tokens (webp, avif, jpeg/jpg, png, gif, svg) and their MIME types
//   - SourceFile, one discovered image with its size and source format
//   - EXIF orientation lookup (evanoberholster/imagemeta) and correction (gift)
//   - Aspect-preserving resize that never enlarges (golang.org/x/image/draw)
package filehandler

import (
	"fmt"
	"strings"
)

// Format is an image encoding, named by the extension token written to disk.
type Format string

const (
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
	FormatJPEG Format = "jpeg"
	FormatJPG  Format = "jpg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatSVG  Format = "svg"
)

// SupportedImageExtensions defines the source extensions picked up by discovery.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".svg":  "image/svg+xml",
	".webp": "image/webp",
}

var formatMIMETypes = map[Format]string{
	FormatWebP: "image/webp",
	FormatAVIF: "image/avif",
	FormatJPEG: "image/jpeg",
	FormatPNG:  "image/png",
	FormatGIF:  "image/gif",
	FormatSVG:  "image/svg+xml",
}

// TargetFormats are the formats a user may request as outputs.
// gif and svg only ever appear as pass-through of a source's own format.
var TargetFormats = []Format{FormatWebP, FormatAVIF, FormatJPEG, FormatJPG, FormatPNG}

// SourceFile is one image found under the input directory.
type SourceFile struct {
	// Path is the absolute path of the image.
	Path string
	// RelPath is the slash-separated path relative to the input directory.
	RelPath string
	// Format is derived from the extension, keeping the original token (jpg stays jpg).
	Format Format
	// Size in bytes, or -1 when it could not be determined.
	Size int64
}

// Canonical folds aliases onto the encoder they share (jpg -> jpeg).
func (f Format) Canonical() Format {
	if f == FormatJPG {
		return FormatJPEG
	}
	return f
}

// MIMEType returns the Content-Type for the format, or application/octet-stream.
func (f Format) MIMEType() string {
	if m, ok := formatMIMETypes[f.Canonical()]; ok {
		return m
	}
	return "application/octet-stream"
}

// IsVector reports whether the format is markup rather than raster data.
func (f Format) IsVector() bool {
	return f == FormatSVG
}

// ParseTargetFormat parses a user-supplied output format token.
func ParseTargetFormat(token string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(token)))
	for _, t := range TargetFormats {
		if f == t {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format %q (want one of webp, avif, jpeg, jpg, png)", token)
}

// FormatFromExt maps a file extension (with or without the dot) to a source format.
func FormatFromExt(ext string) (Format, bool) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if _, ok := SupportedImageExtensions[ext]; !ok {
		return "", false
	}
	return Format(strings.TrimPrefix(ext, ".")), true
}

