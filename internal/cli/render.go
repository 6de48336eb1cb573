package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ccsr-gis/watershed3d/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	color      string  // layer to drape: elevation, nlcd, cdl, runoff
	scaleZ     float64 // vertical exaggeration
	export     bool    // write HTML+PNG artifacts instead of a temp preview
	outputDir  string  // override the configured output directory
	noCache    bool    // disable the alignment cache
	configPath string  // config file override
}

// renderCommand creates the render command for one-shot scene builds.
//
// Without --export the scene is written as a preview HTML in the temp
// directory; with it, both HTML and shaded-relief PNG land in the output
// directory under deterministic names.
func (c *CLI) renderCommand() *cobra.Command {
	opts := renderOpts{
		color:  elevationLayer,
		scaleZ: pipeline.DefaultScaleZ,
	}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Build the 3D scene once and write it out",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVar(&opts.color, "color", opts.color, "layer to color by: elevation (default), nlcd, cdl, runoff")
	cmd.Flags().Float64Var(&opts.scaleZ, "scale-z", opts.scaleZ, "vertical exaggeration factor (> 0)")
	cmd.Flags().BoolVar(&opts.export, "export", false, "write HTML and PNG to the output directory")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "output directory (default from config)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "skip the alignment cache")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "config file (default watershed3d.toml)")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, opts *renderOpts) error {
	cfg, err := LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	layer, err := cfg.Layer(opts.color)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, cfg, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	popts := pipelineOptions(cfg, layer, opts.scaleZ, opts.noCache)
	popts.Logger = c.Logger
	if opts.export {
		popts.Formats = []string{pipeline.FormatHTML, pipeline.FormatPNG}
	} else {
		popts.Formats = []string{pipeline.FormatHTML}
	}

	// The spinner owns the terminal line, so it only runs when stage logs
	// are filtered out.
	var spin *Spinner
	if c.Logger.GetLevel() > log.DebugLevel {
		popts.Logger = newLogger(io.Discard, log.InfoLevel)
		spin = newSpinnerWithContext(ctx, fmt.Sprintf("building %s scene", layer.Name))
		spin.Start()
	}

	result, err := runner.Execute(ctx, popts)
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return err
	}

	printSuccess("Built %s scene at %gx exaggeration", layer.Name, popts.ScaleZ)
	printStats(result.Stats.Cells, layer.Name, result.CacheInfo.AlignHit)
	printDetail("z %.0f to %.0f, values %g to %g",
		result.Mesh.ZMin, result.Mesh.ZMax, result.Mesh.VMin, result.Mesh.VMax)

	if opts.export {
		return c.writeArtifacts(cfg, layer, opts.outputDir, result)
	}
	return c.writePreview(layer, result)
}

// writeArtifacts writes the exported HTML and PNG under deterministic names.
func (c *CLI) writeArtifacts(cfg Config, layer Layer, outputDir string, result *pipeline.Result) error {
	dir := outputDir
	if dir == "" {
		dir = cfg.Render.OutputDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	for _, format := range []string{pipeline.FormatHTML, pipeline.FormatPNG} {
		path := filepath.Join(dir, exportName(layer.Name, format))
		if err := os.WriteFile(path, result.Artifacts[format], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		printFile(path)
	}
	return nil
}

// writePreview writes the HTML to a temp file and tells the user where.
func (c *CLI) writePreview(layer Layer, result *pipeline.Result) error {
	f, err := os.CreateTemp("", appName+"-preview-*.html")
	if err != nil {
		return fmt.Errorf("create preview file: %w", err)
	}
	if _, err := f.Write(result.Artifacts[pipeline.FormatHTML]); err != nil {
		f.Close()
		return fmt.Errorf("write preview: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	printFile(f.Name())
	printNextStep("Keep it", fmt.Sprintf("%s render --color %s --export", appName, layer.Name))
	return nil
}

// exportName builds the deterministic artifact file name for a layer.
func exportName(layer, format string) string {
	return fmt.Sprintf("watershed_dem_%s.%s", layer, format)
}
