package config

import (
	"fmt"
	"slices"
)

// Overrides holds the options given on the command line. Nil pointers and nil
// slices mean "not given"; list and quality values stay raw strings so that
// parse failures surface as ErrInvalidConfig.
type Overrides struct {
	Input        *string
	Output       *string
	Formats      *string
	Quality      *string
	Widths       *string
	SkipExisting *bool
	Verbose      *bool
	DryRun       *bool
	Exclude      []string
	Metrics      *bool
	Cache        *bool
	CDNUpload    *bool
}

// Validate parses every raw override without touching the filesystem.
// Callers run it before loading the configuration file so a bad flag is
// reported before any file access.
func (o Overrides) Validate() error {
	if o.Quality != nil {
		if _, err := ParseQuality(*o.Quality); err != nil {
			return err
		}
	}
	if o.Formats != nil {
		if _, err := ParseFormats(*o.Formats); err != nil {
			return err
		}
	}
	if o.Widths != nil {
		if _, err := ParseWidths(*o.Widths); err != nil {
			return err
		}
	}
	return nil
}

// Resolve merges defaults, the optional configuration file and the command
// line into one validated RunConfig. It performs no I/O.
func Resolve(defaults RunConfig, file *FileConfig, cli Overrides) (RunConfig, error) {
	cfg := defaults.Clone()

	if file != nil {
		if err := applyFile(&cfg, file); err != nil {
			return RunConfig{}, err
		}
	}
	if err := applyOverrides(&cfg, cli); err != nil {
		return RunConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

func applyFile(cfg *RunConfig, f *FileConfig) error {
	setString(&cfg.InputDir, f.Input)
	setString(&cfg.OutputDir, f.Output)
	if f.Formats != nil {
		formats, err := parseFormatList(f.Formats)
		if err != nil {
			return fmt.Errorf("config file formats: %w", err)
		}
		cfg.Formats = formats
	}
	if f.Quality != nil {
		if err := checkQuality(*f.Quality); err != nil {
			return fmt.Errorf("config file quality: %w", err)
		}
		cfg.Quality = *f.Quality
	}
	if f.Widths != nil {
		widths, err := normalizeWidths(f.Widths)
		if err != nil {
			return fmt.Errorf("config file widths: %w", err)
		}
		cfg.Widths = widths
	}
	setBool(&cfg.SkipExisting, f.SkipExisting)
	setBool(&cfg.Verbose, f.Verbose)
	setBool(&cfg.DryRun, f.DryRun)
	setBool(&cfg.Metrics, f.Metrics)
	if f.Exclude != nil {
		cfg.Exclude = slices.Clone(f.Exclude)
	}
	if c := f.Cache; c != nil {
		setBool(&cfg.Cache.Enabled, c.Enabled)
		setString(&cfg.Cache.Directory, c.Directory)
	}
	if c := f.CDN; c != nil {
		setBool(&cfg.CDN.Enabled, c.Enabled)
		setString(&cfg.CDN.Provider, c.Provider)
		setString(&cfg.CDN.Bucket, c.Bucket)
		setString(&cfg.CDN.Prefix, c.Prefix)
		setString(&cfg.CDN.Region, c.Region)
		setString(&cfg.CDN.CacheControl, c.CacheControl)
	}
	return nil
}

func applyOverrides(cfg *RunConfig, o Overrides) error {
	setString(&cfg.InputDir, o.Input)
	setString(&cfg.OutputDir, o.Output)
	if o.Formats != nil {
		formats, err := ParseFormats(*o.Formats)
		if err != nil {
			return err
		}
		cfg.Formats = formats
	}
	if o.Quality != nil {
		q, err := ParseQuality(*o.Quality)
		if err != nil {
			return err
		}
		cfg.Quality = q
	}
	if o.Widths != nil {
		widths, err := ParseWidths(*o.Widths)
		if err != nil {
			return err
		}
		cfg.Widths = widths
	}
	setBool(&cfg.SkipExisting, o.SkipExisting)
	setBool(&cfg.Verbose, o.Verbose)
	setBool(&cfg.DryRun, o.DryRun)
	if o.Exclude != nil {
		cfg.Exclude = slices.Clone(o.Exclude)
	}
	setBool(&cfg.Metrics, o.Metrics)
	setBool(&cfg.Cache.Enabled, o.Cache)
	setBool(&cfg.CDN.Enabled, o.CDNUpload)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
