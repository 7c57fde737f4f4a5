// Package config resolves the immutable run configuration of optimize-images.
//
// Three layers are merged per option, highest precedence first:
//
//  1. command-line flags (Overrides)
//  2. the YAML configuration file (FileConfig)
//  3. built-in defaults (Defaults)
//
// Every failure wraps ErrInvalidConfig.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fpang/optimize-images/internal/filehandler"
)

// ErrInvalidConfig marks configuration that cannot produce a run.
var ErrInvalidConfig = errors.New("invalid configuration")

// Quality bounds accepted by every encoder.
const (
	MinQuality = 0
	MaxQuality = 100
)

// RunConfig is the resolved configuration for one run. Treat it as read-only;
// use Clone before handing it to code that might retain the slices.
type RunConfig struct {
	InputDir     string
	OutputDir    string
	Formats      []filehandler.Format
	Quality      int
	Widths       []int
	SkipExisting bool
	Verbose      bool
	DryRun       bool
	Exclude      []string
	Metrics      bool
	Cache        CacheConfig
	CDN          CDNConfig
}

// CacheConfig controls the output manifest persisted between runs.
type CacheConfig struct {
	Enabled   bool
	Directory string
}

// CDNConfig controls publishing of generated files after a run.
type CDNConfig struct {
	Enabled      bool
	Provider     string
	Bucket       string
	Prefix       string
	Region       string
	CacheControl string
}

// ProviderS3 is the only CDN provider implemented.
const ProviderS3 = "aws-s3"

// Defaults returns the built-in configuration.
func Defaults() RunConfig {
	return RunConfig{
		InputDir:     "./public/images",
		OutputDir:    "./public/optimized",
		Formats:      []filehandler.Format{filehandler.FormatWebP, filehandler.FormatAVIF},
		Quality:      80,
		Widths:       []int{320, 640, 1024, 1440, 1920},
		SkipExisting: true,
		Verbose:      true,
		DryRun:       false,
		Exclude:      slices.Clone(filehandler.DefaultExcludes),
		Cache: CacheConfig{
			Enabled:   false,
			Directory: "./.cache/image-optimization",
		},
		CDN: CDNConfig{
			Provider:     ProviderS3,
			CacheControl: "public, max-age=31536000, immutable",
		},
	}
}

// Clone returns a deep copy.
func (c RunConfig) Clone() RunConfig {
	c.Formats = slices.Clone(c.Formats)
	c.Widths = slices.Clone(c.Widths)
	c.Exclude = slices.Clone(c.Exclude)
	return c
}

// Validate checks the invariants every downstream component relies on.
func (c RunConfig) Validate() error {
	if c.InputDir == "" {
		return fmt.Errorf("%w: input directory is empty", ErrInvalidConfig)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output directory is empty", ErrInvalidConfig)
	}
	if len(c.Formats) == 0 {
		return fmt.Errorf("%w: at least one output format is required", ErrInvalidConfig)
	}
	if err := checkQuality(c.Quality); err != nil {
		return err
	}
	for _, w := range c.Widths {
		if w <= 0 {
			return fmt.Errorf("%w: width %d must be a positive integer", ErrInvalidConfig, w)
		}
	}
	for _, p := range c.Exclude {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("%w: malformed exclude pattern %q", ErrInvalidConfig, p)
		}
	}
	if c.CDN.Enabled {
		if c.CDN.Provider != ProviderS3 {
			return fmt.Errorf("%w: unsupported cdn provider %q (only %s)", ErrInvalidConfig, c.CDN.Provider, ProviderS3)
		}
		if c.CDN.Bucket == "" {
			return fmt.Errorf("%w: cdn.bucket is required when cdn upload is enabled", ErrInvalidConfig)
		}
		if !c.Cache.Enabled {
			return fmt.Errorf("%w: cdn upload requires the cache to be enabled", ErrInvalidConfig)
		}
	}
	return nil
}

func checkQuality(q int) error {
	if q < MinQuality || q > MaxQuality {
		return fmt.Errorf("%w: quality %d must be between %d and %d", ErrInvalidConfig, q, MinQuality, MaxQuality)
	}
	return nil
}

// ParseQuality parses a quality token and checks its range.
func ParseQuality(s string) (int, error) {
	q, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: quality %q is not an integer", ErrInvalidConfig, s)
	}
	if err := checkQuality(q); err != nil {
		return 0, err
	}
	return q, nil
}

// ParseFormats parses a comma-separated list of output formats.
// Duplicates (including jpg/jpeg aliases) are dropped, keeping the first token.
func ParseFormats(csv string) ([]filehandler.Format, error) {
	return parseFormatList(splitCSV(csv))
}

func parseFormatList(tokens []string) ([]filehandler.Format, error) {
	var formats []filehandler.Format
	seen := make(map[filehandler.Format]bool)
	for _, tok := range tokens {
		f, err := filehandler.ParseTargetFormat(tok)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if seen[f.Canonical()] {
			continue
		}
		seen[f.Canonical()] = true
		formats = append(formats, f)
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("%w: at least one output format is required", ErrInvalidConfig)
	}
	return formats, nil
}

// ParseWidths parses a comma-separated list of positive pixel widths.
// An empty list is valid and means only the original size is produced.
func ParseWidths(csv string) ([]int, error) {
	var widths []int
	for _, tok := range splitCSV(csv) {
		w, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("%w: width %q is not an integer", ErrInvalidConfig, tok)
		}
		widths = append(widths, w)
	}
	return normalizeWidths(widths)
}

func normalizeWidths(widths []int) ([]int, error) {
	out := make([]int, 0, len(widths))
	for _, w := range widths {
		if w <= 0 {
			return nil, fmt.Errorf("%w: width %d must be a positive integer", ErrInvalidConfig, w)
		}
		if !slices.Contains(out, w) {
			out = append(out, w)
		}
	}
	return out, nil
}

// splitCSV splits on commas, trims whitespace and drops empty items.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
