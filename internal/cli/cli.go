package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ccsr-gis/watershed3d/pkg/buildinfo"
	"github.com/ccsr-gis/watershed3d/pkg/cache"
	"github.com/ccsr-gis/watershed3d/pkg/pipeline"
)

// appName is the application name used for directories and display.
const appName = "watershed3d"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands
// registered. Running the binary with no arguments starts the TUI.
func (c *CLI) RootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          appName,
		Short:        "watershed3d renders watershed terrain in 3D",
		Long:         `watershed3d drapes land cover, cropland, and runoff rasters over a DEM and renders the result as an interactive 3D scene and a shaded-relief image.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTUI(cmd.Context(), tuiOpts{configPath: configPath})
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "config file (default watershed3d.toml)")

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.tuiCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.layersCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, cfg Config, noCache bool) (*pipeline.Runner, error) {
	backend, err := newCache(ctx, cfg.Cache, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(backend, c.Logger), nil
}

// newCache builds the configured cache backend. Backend failures fall back
// to no caching rather than aborting a render.
func newCache(ctx context.Context, cfg CacheConfig, noCache bool) (cache.Cache, error) {
	if noCache || cfg.Backend == "none" {
		return cache.NewNullCache(), nil
	}
	if cfg.Backend == "redis" {
		return cache.NewRedisCache(ctx, cfg.RedisAddr)
	}
	dir, err := cacheDir()
	if err != nil {
		printWarning("alignment cache disabled: %v", err)
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// cacheDir returns the cache directory using the XDG convention
// (~/.cache/watershed3d/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// pipelineOptions translates a resolved layer into pipeline options.
func pipelineOptions(cfg Config, layer Layer, scaleZ float64, refresh bool) pipeline.Options {
	return pipeline.Options{
		DEMPath:     cfg.DEM,
		OverlayPath: layer.Path,
		Categorical: layer.Categorical,
		Ramp:        layer.Ramp,
		ScaleZ:      scaleZ,
		Title:       sceneTitle(layer),
		Refresh:     refresh,
	}
}

func sceneTitle(layer Layer) string {
	return fmt.Sprintf("Watershed DEM (%s)", layer.Name)
}
