// Package pipeline runs the complete load → align → color → mesh → render
// chain. The CLI, TUI, and HTTP viewer all go through the same Runner so
// caching and validation behave identically across entry points.
//
// The stages are:
//
//  1. Load: read the DEM (and overlay, if any) from GeoTIFF
//  2. Align: resample the overlay onto the DEM's exact grid
//  3. Color: build the color table (ramp stretch or embedded palette)
//  4. Mesh: build the exaggerated surface with its unscaled value channel
//  5. Render: write the requested artifacts (HTML, PNG)
//
// Only the align stage is cached: it is the expensive one, and its result
// depends solely on the two input files and the resampling method.
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ccsr-gis/watershed3d/pkg/colormap"
	"github.com/ccsr-gis/watershed3d/pkg/errors"
	"github.com/ccsr-gis/watershed3d/pkg/raster"
	"github.com/ccsr-gis/watershed3d/pkg/scene"
)

// Default values shared by CLI, TUI, and HTTP viewer.
const (
	// DefaultScaleZ is the vertical exaggeration applied when none is given.
	DefaultScaleZ = 1.0

	// DefaultRamp colors elevation when no overlay is draped.
	DefaultRamp = "gist_earth"
)

// Output format constants.
const (
	FormatHTML = "html"
	FormatPNG  = "png"
)

// ValidFormats is the set of supported artifact formats.
var ValidFormats = map[string]bool{
	FormatHTML: true,
	FormatPNG:  true,
}

// Options configures a pipeline run.
type Options struct {
	// DEMPath is the elevation GeoTIFF. Required.
	DEMPath string

	// OverlayPath is the raster draped over the terrain. Empty means the
	// surface is colored by its own elevation.
	OverlayPath string

	// Categorical marks the overlay as class-coded (NLCD, CDL): alignment
	// uses nearest-neighbor sampling and colors come from the embedded
	// palette. Continuous overlays are resampled bilinearly and stretched
	// over Ramp.
	Categorical bool

	// Ramp is the color ramp for continuous layers.
	Ramp string

	// ScaleZ is the vertical exaggeration. Z values are multiplied by it;
	// the color channel never is.
	ScaleZ float64

	// Formats lists the artifacts to render.
	Formats []string

	// Title labels the rendered scene.
	Title string

	// Refresh bypasses cache reads (results are still written back).
	Refresh bool

	// Logger for stage progress. Defaults to a discard logger.
	Logger *log.Logger

	validated bool
}

// ValidateAndSetDefaults checks the options and fills in defaults.
// Idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.DEMPath == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "DEM path is required")
	}
	if o.ScaleZ == 0 {
		o.ScaleZ = DefaultScaleZ
	}
	if o.ScaleZ < 0 {
		return errors.New(errors.ErrCodeInvalidScale, "z scale must be positive, got %v", o.ScaleZ)
	}
	if o.Ramp == "" {
		o.Ramp = DefaultRamp
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{FormatHTML}
	}
	for _, f := range o.Formats {
		if !ValidFormats[f] {
			return errors.New(errors.ErrCodeInvalidFormat, "invalid format %q (must be html or png)", f)
		}
	}
	if o.Title == "" {
		o.Title = "Terrain"
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// Resampling returns the alignment method the overlay kind requires.
func (o *Options) Resampling() raster.Resampling {
	if o.Categorical {
		return raster.Nearest
	}
	return raster.Bilinear
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// DEM is the loaded elevation grid.
	DEM *raster.Raster

	// Overlay is the aligned overlay, nil for elevation-only runs.
	Overlay *raster.Raster

	// Mesh is the built surface.
	Mesh *scene.Mesh

	// Table is the color table the artifacts were rendered with.
	Table *colormap.Table

	// Artifacts holds the rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks whether the align stage hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Cells      int
	LoadTime   time.Duration
	AlignTime  time.Duration
	BuildTime  time.Duration
	RenderTime time.Duration
}

// CacheInfo tracks cache hits.
type CacheInfo struct {
	AlignHit bool
}

// BuildScene builds the mesh and color table from already-loaded rasters.
// The TUI and HTTP viewer hold rasters in memory and call this directly when
// only the scale or layer changes; Execute goes through it too.
func BuildScene(dem, overlay *raster.Raster, opts Options) (*scene.Mesh, *colormap.Table, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, nil, err
	}

	mesh, err := scene.Build(dem, overlay, opts.ScaleZ)
	if err != nil {
		return nil, nil, err
	}

	var table *colormap.Table
	if opts.Categorical {
		if overlay == nil {
			return nil, nil, errors.New(errors.ErrCodeInternal, "categorical run without an overlay")
		}
		table, err = colormap.Categorical(overlay.Palette)
	} else {
		// Continuous ramps stretch over the value raster's own finite range,
		// not the mesh's: cells hidden by DEM holes still anchor the scale.
		src := dem
		if overlay != nil {
			src = overlay
		}
		lo, hi, ok := src.ValueRange()
		if !ok {
			return nil, nil, errors.New(errors.ErrCodeUnsupportedRaster, "layer has no finite values to stretch over")
		}
		table, err = colormap.Continuous(opts.Ramp, lo, hi)
	}
	if err != nil {
		return nil, nil, err
	}
	return mesh, table, nil
}
