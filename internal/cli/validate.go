package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/fpang/optimize-images/internal/config"
)

// EnsureDirectory creates dirPath and its parents when missing and returns
// the absolute path. An existing non-directory at dirPath is an error.
func EnsureDirectory(dirPath string) (string, error) {
	absPath, err := filepath.Abs(dirPath)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", dirPath, err)
	}

	info, err := os.Stat(absPath)
	switch {
	case err == nil && !info.IsDir():
		return "", fmt.Errorf("%s exists and is not a directory", absPath)
	case err == nil:
		return absPath, nil
	case !os.IsNotExist(err):
		return "", fmt.Errorf("access %s: %w", absPath, err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", absPath, err)
	}
	log.Debug().Str("path", absPath).Msg("Created output directory")
	return absPath, nil
}

// HandleRunError logs a fatal run error with a message matched to its
// category and exits with status 1.
func HandleRunError(err error) {
	switch {
	case errors.Is(err, config.ErrInvalidConfig):
		log.Error().Err(err).Msg("Invalid configuration")
	default:
		log.Error().Err(err).Msg("Setup failed")
	}
	os.Exit(1)
}
