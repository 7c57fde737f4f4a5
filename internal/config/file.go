package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is read when no --config flag or OPTIMIZE_IMAGES_CONFIG is given.
const DefaultConfigPath = "config/image-optimization.yaml"

// FileConfig mirrors the YAML configuration file. Nil fields are unset and
// fall through to the defaults. Unknown keys are ignored.
type FileConfig struct {
	Input        *string    `yaml:"input"`
	Output       *string    `yaml:"output"`
	Formats      []string   `yaml:"formats"`
	Quality      *int       `yaml:"quality"`
	Widths       []int      `yaml:"widths"`
	SkipExisting *bool      `yaml:"skipExisting"`
	Verbose      *bool      `yaml:"verbose"`
	DryRun       *bool      `yaml:"dryRun"`
	Exclude      []string   `yaml:"exclude"`
	Metrics      *bool      `yaml:"metrics"`
	Cache        *CacheFile `yaml:"cache"`
	CDN          *CDNFile   `yaml:"cdn"`
}

// CacheFile is the cache: section of the configuration file.
type CacheFile struct {
	Enabled   *bool   `yaml:"enabled"`
	Directory *string `yaml:"directory"`
}

// CDNFile is the cdn: section of the configuration file.
type CDNFile struct {
	Enabled      *bool   `yaml:"enabled"`
	Provider     *string `yaml:"provider"`
	Bucket       *string `yaml:"bucket"`
	Prefix       *string `yaml:"prefix"`
	Region       *string `yaml:"region"`
	CacheControl *string `yaml:"cacheControl"`
}

// LoadFile reads the YAML configuration at path.
//
// When required is false a missing file is not an error and (nil, nil) is
// returned; this is the behaviour for the default location. A file that
// exists but does not parse is always an error.
func LoadFile(path string, required bool) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			log.Debug().Str("path", path).Msg("No configuration file, using defaults")
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read config file %s: %v", ErrInvalidConfig, path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("%w: parse config file %s: %v", ErrInvalidConfig, path, err)
	}

	log.Debug().Str("path", path).Msg("Configuration file loaded")
	return &fc, nil
}
