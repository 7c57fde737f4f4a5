package filehandler

import (
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog/log"
)

// DefaultExcludes are skipped unless the configuration replaces them.
var DefaultExcludes = []string{"**/node_modules/**", "**/.git/**"}

// Discover returns a lazy sequence of the source images under inputDir.
//
// The walk is recursive and matches SupportedImageExtensions case-insensitively.
// Paths matching any exclude glob (doublestar syntax, evaluated against the
// slash-separated path relative to inputDir) are dropped, and the outputDir
// subtree is always pruned so optimized output is never fed back in.
// A missing input directory yields nothing.
//
// The sequence walks the filesystem as it is consumed and cannot be restarted
// meaningfully; ranging over it twice walks the tree twice.
func Discover(inputDir, outputDir string, exclude []string) iter.Seq[SourceFile] {
	return func(yield func(SourceFile) bool) {
		absInput, err := filepath.Abs(inputDir)
		if err != nil {
			log.Warn().Err(err).Str("path", inputDir).Msg("Failed to resolve input directory")
			return
		}
		absOutput, err := filepath.Abs(outputDir)
		if err != nil {
			log.Warn().Err(err).Str("path", outputDir).Msg("Failed to resolve output directory")
			return
		}

		info, err := os.Stat(absInput)
		if err != nil {
			log.Warn().Err(err).Str("path", absInput).Msg("Input directory not accessible, nothing to discover")
			return
		}
		if !info.IsDir() {
			log.Warn().Str("path", absInput).Msg("Input path is not a directory, nothing to discover")
			return
		}

		if IsWithin(absInput, absOutput) {
			log.Warn().
				Str("input", absInput).
				Str("output", absOutput).
				Msg("Input directory lies inside the output directory, nothing to discover")
			return
		}

		log.Debug().
			Str("input", absInput).
			Str("output", absOutput).
			Strs("exclude", exclude).
			Msg("Scanning directory for images")

		_ = filepath.WalkDir(absInput, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Error accessing path, skipping")
				return nil
			}

			if IsWithin(path, absOutput) {
				if d.IsDir() {
					log.Debug().Str("path", path).Msg("Skipping output directory")
					return fs.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				return nil
			}

			// Follow file symlinks, skip directory symlinks
			if d.Type()&fs.ModeSymlink != 0 {
				target, err := os.Stat(path)
				if err != nil {
					log.Warn().Err(err).Str("path", path).Msg("Failed to stat symlink target, skipping")
					return nil
				}
				if target.IsDir() {
					log.Debug().Str("path", path).Msg("Skipping symlink to directory")
					return nil
				}
			}

			format, ok := FormatFromExt(filepath.Ext(path))
			if !ok {
				return nil
			}

			rel, err := filepath.Rel(absInput, path)
			if err != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)

			if pattern, ok := MatchExclude(rel, exclude); ok {
				log.Debug().Str("path", rel).Str("pattern", pattern).Msg("Excluded by pattern")
				return nil
			}

			size := int64(-1)
			if fi, err := os.Stat(path); err == nil {
				size = fi.Size()
			}

			if !yield(SourceFile{Path: path, RelPath: rel, Format: format, Size: size}) {
				return fs.SkipAll
			}
			return nil
		})
	}
}

// MatchExclude returns the first pattern that matches rel.
func MatchExclude(rel string, patterns []string) (string, bool) {
	for _, p := range patterns {
		ok, err := doublestar.Match(p, rel)
		if err != nil {
			log.Warn().Err(err).Str("pattern", p).Msg("Invalid exclude pattern, ignoring")
			continue
		}
		if ok {
			return p, true
		}
	}
	return "", false
}

// IsWithin reports whether path is dir itself or lies below it. Both must be absolute.
func IsWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
