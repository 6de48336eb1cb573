package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccsr-gis/watershed3d/pkg/raster"
)

// layersCommand creates the layers command, which lists the configured
// overlays with their files, kinds, and palette status.
func (c *CLI) layersCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "layers",
		Short: "List the configured terrain layers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			return runLayers(cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default watershed3d.toml)")
	return cmd
}

func runLayers(cfg Config) error {
	printKeyValue("dem", cfg.DEM+"  "+fileStatus(cfg.DEM))
	if r, err := raster.ReadFile(cfg.DEM); err == nil {
		printDetail("%s", extentDetail(r))
	}
	printNewline()

	for _, name := range cfg.LayerNames() {
		layer, err := cfg.Layer(name)
		if err != nil {
			return err
		}
		if layer.Name == elevationLayer {
			printKeyValue(name, "continuous, colored by DEM values ("+layer.Ramp+")")
			continue
		}

		kind := "continuous (" + layer.Ramp + ")"
		if layer.Categorical {
			kind = "categorical, " + paletteStatus(layer.Path)
		}
		printKeyValue(name, layer.Path+"  "+fileStatus(layer.Path))
		printDetail("%s", kind)
	}
	return nil
}

// extentDetail summarizes a raster's grid and world extent on one line.
func extentDetail(r *raster.Raster) string {
	minX, minY, maxX, maxY := r.Bounds()
	return fmt.Sprintf("%dx%d cells, extent %.0f,%.0f to %.0f,%.0f", r.Width, r.Height, minX, minY, maxX, maxY)
}

// fileStatus reports whether a configured raster exists on disk.
func fileStatus(path string) string {
	if _, err := os.Stat(path); err != nil {
		return StyleWarning.Render("(missing)")
	}
	return StyleSuccess.Render("(found)")
}

// paletteStatus reads a categorical raster and reports whether it carries an
// embedded color table. Missing or unreadable files are reported as such
// rather than failing the listing.
func paletteStatus(path string) string {
	if _, err := os.Stat(path); err != nil {
		return "palette unknown"
	}
	r, err := raster.ReadFile(path)
	if err != nil {
		return "unreadable"
	}
	if len(r.Palette) == 0 {
		return StyleWarning.Render("no embedded palette")
	}
	return "embedded palette"
}
