package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/optimize-images/internal/cli"
	"github.com/fpang/optimize-images/internal/config"
	"github.com/fpang/optimize-images/internal/filehandler"
	"github.com/fpang/optimize-images/internal/logging"
	"github.com/fpang/optimize-images/internal/manifest"
	"github.com/fpang/optimize-images/internal/metrics"
	"github.com/fpang/optimize-images/internal/pipeline"
	"github.com/fpang/optimize-images/internal/postprocess"
	"github.com/fpang/optimize-images/internal/report"
	"github.com/fpang/optimize-images/internal/s3util"
	"github.com/fpang/optimize-images/internal/transcode"
)

// configEnv overrides the default configuration file location.
const configEnv = "OPTIMIZE_IMAGES_CONFIG"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// CLI flags
var (
	inputFlag        string
	outputFlag       string
	formatsFlag      string
	qualityFlag      string
	widthsFlag       string
	skipExistingFlag bool
	verboseFlag      bool
	dryRunFlag       bool
	configFlag       string
	excludeFlag      []string
	metricsFlag      bool
	cacheFlag        bool
	cdnUploadFlag    bool
)

// rootCmd is the main Cobra command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "optimize-images",
	Short: "Generate optimized, responsive variants of a site's images",
	Long: `optimize-images walks a directory of source images and writes every
combination of output format and responsive width into an output directory,
re-encoding with fixed per-format settings and a secondary minification pass.

Options are resolved per option from the command line, then the YAML
configuration file (config/image-optimization.yaml, or OPTIMIZE_IMAGES_CONFIG),
then built-in defaults.

Outputs are named <output>/<relative dir>/<name>[-<width>w].<format>. With
--skip-existing any file already at that path counts as done, including a file
truncated by an interrupted run; delete it to regenerate.

Examples:
  optimize-images
  optimize-images --input ./assets --output ./dist/img --formats webp,jpeg
  optimize-images --widths 480,960 --quality 70 --dry-run
  optimize-images --exclude "drafts/**" --exclude "**/*.tmp.png"
  optimize-images --cache --cdn-upload --metrics`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run:           runMain,
}

func init() {
	defaults := config.Defaults()

	f := rootCmd.Flags()
	f.StringVarP(&inputFlag, "input", "i", defaults.InputDir, "Directory containing the source images")
	f.StringVarP(&outputFlag, "output", "o", defaults.OutputDir, "Directory for optimized images")
	f.StringVarP(&formatsFlag, "formats", "f", joinFormats(defaults.Formats), "Output formats (comma-separated: webp,avif,jpeg,png)")
	f.StringVarP(&qualityFlag, "quality", "q", strconv.Itoa(defaults.Quality), "Compression quality (0-100)")
	f.StringVar(&widthsFlag, "widths", joinInts(defaults.Widths), "Responsive widths in pixels (comma-separated)")
	f.BoolVar(&skipExistingFlag, "skip-existing", defaults.SkipExisting, "Skip outputs that already exist")
	f.BoolVar(&verboseFlag, "verbose", defaults.Verbose, "Print a line for every generated or skipped output")
	f.BoolVar(&dryRunFlag, "dry-run", defaults.DryRun, "Encode and report sizes without writing anything")
	f.StringVarP(&configFlag, "config", "c", config.DefaultConfigPath, "YAML configuration file")
	f.StringArrayVar(&excludeFlag, "exclude", defaults.Exclude, "Glob of input paths to ignore (repeatable, replaces the defaults)")
	f.BoolVar(&metricsFlag, "metrics", defaults.Metrics, "Emit a CloudWatch EMF metrics line on stdout")
	f.BoolVar(&cacheFlag, "cache", defaults.Cache.Enabled, "Keep a manifest of generated outputs in the cache directory")
	f.BoolVar(&cdnUploadFlag, "cdn-upload", defaults.CDN.Enabled, "Upload new outputs to the configured S3 bucket (requires --cache)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// runMain is the main execution logic called by Cobra.
func runMain(cmd *cobra.Command, args []string) {
	logging.Init()
	resolveStart := time.Now()

	// Flags are checked before the configuration file is touched.
	overrides := collectOverrides(cmd)
	if err := overrides.Validate(); err != nil {
		cli.HandleRunError(err)
	}

	configPath, required := configLocation(cmd)
	fileCfg, err := config.LoadFile(configPath, required)
	if err != nil {
		cli.HandleRunError(err)
	}

	cfg, err := config.Resolve(config.Defaults(), fileCfg, overrides)
	if err != nil {
		cli.HandleRunError(err)
	}

	runID := uuid.NewString()
	startup := logging.NewStartupLogger("optimize-images").
		Version(version).
		RunID(runID).
		Dir("input", cfg.InputDir).
		Dir("output", cfg.OutputDir).
		Feature("skipExisting", cfg.SkipExisting).
		Feature("dryRun", cfg.DryRun).
		Feature("cache", cfg.Cache.Enabled).
		Feature("cdnUpload", cfg.CDN.Enabled).
		Feature("metrics", cfg.Metrics).
		Config("formats", joinFormats(cfg.Formats)).
		Config("quality", strconv.Itoa(cfg.Quality)).
		Config("widths", joinInts(cfg.Widths)).
		Config("exclude", strings.Join(cfg.Exclude, ",")).
		ResolveDuration(time.Since(resolveStart))
	if fileCfg != nil {
		startup.ConfigFile(configPath)
	}
	if cfg.Cache.Enabled {
		startup.Dir("cache", cfg.Cache.Directory)
	}
	if cfg.CDN.Enabled {
		startup.Config("cdnBucket", cfg.CDN.Bucket).Config("cdnPrefix", cfg.CDN.Prefix)
	}
	startup.Log()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, runID)
	stop()
	if err != nil {
		cli.HandleRunError(err)
	}
}

// run executes one optimization run. Only setup failures are returned; task
// failures are reported in the summary and do not change the exit status.
func run(ctx context.Context, cfg config.RunConfig, runID string) error {
	if !cfg.DryRun {
		if _, err := cli.EnsureDirectory(cfg.OutputDir); err != nil {
			return fmt.Errorf("output directory: %w", err)
		}
	}

	observers := []pipeline.Observer{report.NewConsole(os.Stdout, cfg.Verbose, cfg.DryRun)}

	var m *manifest.Manifest
	if cfg.Cache.Enabled {
		loaded, err := manifest.Load(cfg.Cache.Directory, cfg.OutputDir)
		if err != nil {
			log.Warn().Err(err).Msg("Ignoring unreadable manifest, starting a new one")
			loaded = manifest.New(cfg.Cache.Directory, cfg.OutputDir)
		}
		m = loaded
		observers = append(observers, manifest.NewObserver(m, cfg.OutputDir, cfg.DryRun))
	}
	if cfg.Metrics {
		observers = append(observers, metrics.NewRunObserver(os.Stdout, runID, cfg.DryRun))
	}

	tr := transcode.New(cfg, postprocess.Apply)
	files := filehandler.Discover(cfg.InputDir, cfg.OutputDir, cfg.Exclude)
	pipeline.NewRunner(cfg, tr, observers...).Run(ctx, files)

	if m == nil || cfg.DryRun {
		if cfg.DryRun && cfg.CDN.Enabled {
			log.Info().Msg("Dry run, CDN upload skipped")
		}
		return nil
	}

	if cfg.CDN.Enabled && ctx.Err() == nil {
		publish(ctx, cfg.CDN, m)
	}

	if err := m.Save(runID); err != nil {
		log.Warn().Err(err).Msg("Failed to save manifest")
	}
	return nil
}

// publish uploads pending outputs. Failures are logged, never fatal.
func publish(ctx context.Context, cdn config.CDNConfig, m *manifest.Manifest) {
	client, err := s3util.NewClient(ctx, cdn.Region)
	if err != nil {
		log.Warn().Err(err).Msg("CDN upload skipped, AWS client unavailable")
		return
	}
	s3util.NewPublisher(client, cdn).PublishPending(ctx, m)
}

// collectOverrides turns the flags the user actually set into Overrides.
func collectOverrides(cmd *cobra.Command) config.Overrides {
	changed := cmd.Flags().Changed
	var o config.Overrides
	if changed("input") {
		o.Input = &inputFlag
	}
	if changed("output") {
		o.Output = &outputFlag
	}
	if changed("formats") {
		o.Formats = &formatsFlag
	}
	if changed("quality") {
		o.Quality = &qualityFlag
	}
	if changed("widths") {
		o.Widths = &widthsFlag
	}
	if changed("skip-existing") {
		o.SkipExisting = &skipExistingFlag
	}
	if changed("verbose") {
		o.Verbose = &verboseFlag
	}
	if changed("dry-run") {
		o.DryRun = &dryRunFlag
	}
	if changed("exclude") {
		o.Exclude = excludeFlag
	}
	if changed("metrics") {
		o.Metrics = &metricsFlag
	}
	if changed("cache") {
		o.Cache = &cacheFlag
	}
	if changed("cdn-upload") {
		o.CDNUpload = &cdnUploadFlag
	}
	return o
}

// configLocation picks the configuration file. An explicit --config or
// OPTIMIZE_IMAGES_CONFIG must exist; the default location is optional.
func configLocation(cmd *cobra.Command) (string, bool) {
	if cmd.Flags().Changed("config") {
		return configFlag, true
	}
	if env := os.Getenv(configEnv); env != "" {
		return env, true
	}
	return config.DefaultConfigPath, false
}

func joinFormats(formats []filehandler.Format) string {
	parts := make([]string, len(formats))
	for i, f := range formats {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
