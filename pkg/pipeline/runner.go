package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ccsr-gis/watershed3d/pkg/cache"
	"github.com/ccsr-gis/watershed3d/pkg/raster"
	"github.com/ccsr-gis/watershed3d/pkg/scene"
)

// Runner executes the pipeline with caching.
//
// The Runner is stateless except for the cache and logger - it doesn't store
// run results. Multiple goroutines can safely share one Runner with
// different options.
type Runner struct {
	Cache  cache.Cache
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching.
func NewRunner(c cache.Cache, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Logger: logger}
}

// Execute runs the complete load → align → color → mesh → render pipeline.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	result := &Result{Artifacts: make(map[string][]byte)}

	// Stage 1: Load
	loadStart := time.Now()
	dem, err := raster.ReadFile(opts.DEMPath)
	if err != nil {
		return nil, fmt.Errorf("load DEM: %w", err)
	}
	result.DEM = dem
	result.Stats.LoadTime = time.Since(loadStart)
	result.Stats.Cells = dem.Width * dem.Height

	opts.Logger.Info("loaded DEM",
		"path", opts.DEMPath,
		"size", fmt.Sprintf("%dx%d", dem.Width, dem.Height),
		"duration", result.Stats.LoadTime)

	// Stage 2: Align
	if opts.OverlayPath != "" {
		alignStart := time.Now()
		overlay, hit, err := r.AlignWithCacheInfo(ctx, dem, opts)
		if err != nil {
			return nil, fmt.Errorf("align overlay: %w", err)
		}
		result.Overlay = overlay
		result.Stats.AlignTime = time.Since(alignStart)
		result.CacheInfo.AlignHit = hit

		opts.Logger.Info("aligned overlay",
			"path", opts.OverlayPath,
			"method", opts.Resampling().String(),
			"cached", hit,
			"duration", result.Stats.AlignTime)
	}

	// Stages 3+4: Color table and mesh
	buildStart := time.Now()
	mesh, table, err := BuildScene(dem, result.Overlay, opts)
	if err != nil {
		return nil, fmt.Errorf("build scene: %w", err)
	}
	result.Mesh = mesh
	result.Table = table
	result.Stats.BuildTime = time.Since(buildStart)

	opts.Logger.Info("built scene",
		"cells", result.Stats.Cells,
		"scale_z", opts.ScaleZ,
		"duration", result.Stats.BuildTime)

	// Stage 5: Render
	renderStart := time.Now()
	for _, format := range opts.Formats {
		var buf bytes.Buffer
		switch format {
		case FormatHTML:
			err = scene.RenderHTML(&buf, mesh, table, opts.Title)
		case FormatPNG:
			err = scene.RenderPNG(&buf, mesh, table)
		}
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		result.Artifacts[format] = buf.Bytes()
	}
	result.Stats.RenderTime = time.Since(renderStart)

	opts.Logger.Info("rendered artifacts",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// AlignWithCacheInfo loads the overlay and resamples it onto the DEM grid,
// reusing a cached result when the input files and method are unchanged.
// The cache key covers both files' identity (path, size, mtime), so editing
// either raster in place invalidates the entry.
func (r *Runner) AlignWithCacheInfo(ctx context.Context, dem *raster.Raster, opts Options) (*raster.Raster, bool, error) {
	key := cache.Key("align",
		fileSignature(opts.DEMPath),
		fileSignature(opts.OverlayPath),
		opts.Resampling().String(),
	)

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			if aligned, err := raster.Unmarshal(data); err == nil {
				return aligned, true, nil
			}
			// Undecodable entry, recompute below.
		}
	}

	overlay, err := raster.ReadFile(opts.OverlayPath)
	if err != nil {
		return nil, false, err
	}
	aligned, err := raster.Align(dem, overlay, opts.Resampling())
	if err != nil {
		return nil, false, err
	}

	if data, err := aligned.Marshal(); err == nil {
		_ = r.Cache.Set(ctx, key, data, cache.TTLAlign)
	}
	return aligned, false, nil
}

// Align is a convenience wrapper that discards the cache hit info.
func (r *Runner) Align(ctx context.Context, dem *raster.Raster, opts Options) (*raster.Raster, error) {
	aligned, _, err := r.AlignWithCacheInfo(ctx, dem, opts)
	return aligned, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger fills the run logger from the runner before validation, so a
// per-run logger (request-scoped, or discarded under a spinner) wins over
// the runner's default.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// fileSignature identifies a file's content cheaply: path plus size and
// mtime. Good enough for cache keys; a stale signature only costs a
// recompute.
func fileSignature(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return path
	}
	return fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
}
