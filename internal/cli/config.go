package cli

import (
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/ccsr-gis/watershed3d/pkg/errors"
)

// defaultConfigFile is looked for in the working directory when --config is
// not given. A missing default file is fine; a missing explicit one is not.
const defaultConfigFile = "watershed3d.toml"

// Layer kinds.
const (
	kindCategorical = "categorical"
	kindContinuous  = "continuous"
)

// elevationLayer is the implicit layer name for coloring the DEM by its own
// elevation. It needs no file and no config entry.
const elevationLayer = "elevation"

// Config mirrors watershed3d.toml.
type Config struct {
	// DEM is the elevation GeoTIFF all overlays are aligned to.
	DEM string `toml:"dem"`

	Layers map[string]LayerConfig `toml:"layers"`
	Render RenderConfig           `toml:"render"`
	Cache  CacheConfig            `toml:"cache"`
	Serve  ServeConfig            `toml:"serve"`
}

// LayerConfig describes one drapeable overlay raster.
type LayerConfig struct {
	Path string `toml:"path"`

	// Kind is "categorical" (class codes + embedded palette) or
	// "continuous". Empty is inferred: the stock nlcd/cdl layers are
	// categorical, everything else continuous.
	Kind string `toml:"kind"`

	// Ramp is the color ramp for continuous layers.
	Ramp string `toml:"ramp"`
}

// RenderConfig holds output settings.
type RenderConfig struct {
	OutputDir string `toml:"output_dir"`

	// Ramp colors the elevation layer.
	Ramp string `toml:"ramp"`
}

// CacheConfig selects the alignment cache backend.
type CacheConfig struct {
	Backend   string `toml:"backend"` // "file" (default), "redis", "none"
	RedisAddr string `toml:"redis_addr"`
}

// ServeConfig holds HTTP viewer settings.
type ServeConfig struct {
	Addr string `toml:"addr"`
}

// DefaultConfig returns the built-in configuration, reproducing the project's
// standard data layout.
func DefaultConfig() Config {
	return Config{
		DEM: "DEM/tif/DEM_UTM.tif",
		Layers: map[string]LayerConfig{
			"nlcd":   {Path: "NLCD/nlcd2016_ny.tif", Kind: kindCategorical},
			"cdl":    {Path: "CDL/CDL_2020_36.tif", Kind: kindCategorical},
			"runoff": {Path: "runoff_coefficient/runoff_coefficient.tif", Kind: kindContinuous, Ramp: "viridis_r"},
		},
		Render: RenderConfig{
			OutputDir: "outputs",
			Ramp:      "gist_earth",
		},
		Cache: CacheConfig{Backend: "file"},
		Serve: ServeConfig{Addr: ":8080"},
	}
}

// LoadConfig reads the TOML config at path, layered over the defaults.
// An empty path means "watershed3d.toml if present, else pure defaults".
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	if _, err := os.Stat(path); err != nil {
		if explicit {
			return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "config file %s", path)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if err := cfg.normalize(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// normalize fills inferred layer kinds and validates the explicit ones.
func (c *Config) normalize() error {
	for name, lc := range c.Layers {
		switch lc.Kind {
		case "":
			if name == "nlcd" || name == "cdl" {
				lc.Kind = kindCategorical
			} else {
				lc.Kind = kindContinuous
			}
		case kindCategorical, kindContinuous:
		default:
			return errors.New(errors.ErrCodeInvalidConfig,
				"layer %s: kind must be %q or %q, got %q", name, kindCategorical, kindContinuous, lc.Kind)
		}
		if lc.Kind == kindContinuous && lc.Ramp == "" {
			lc.Ramp = "viridis_r"
		}
		c.Layers[name] = lc
	}
	if c.Render.Ramp == "" {
		c.Render.Ramp = "gist_earth"
	}
	if c.Render.OutputDir == "" {
		c.Render.OutputDir = "outputs"
	}
	return nil
}

// Layer is a resolved drape target.
type Layer struct {
	Name        string
	Path        string // empty for the elevation layer
	Categorical bool
	Ramp        string
}

// Layer resolves a layer name from the config. The implicit "elevation"
// layer (also the empty name) colors the DEM by its own values.
func (c Config) Layer(name string) (Layer, error) {
	if name == "" || name == elevationLayer {
		return Layer{Name: elevationLayer, Ramp: c.Render.Ramp}, nil
	}
	lc, ok := c.Layers[name]
	if !ok {
		names := c.LayerNames()
		return Layer{}, errors.New(errors.ErrCodeInvalidLayer,
			"unknown layer %q (available: %v)", name, names)
	}
	return Layer{
		Name:        name,
		Path:        lc.Path,
		Categorical: lc.Kind == kindCategorical,
		Ramp:        lc.Ramp,
	}, nil
}

// LayerNames lists the selectable layers, elevation first, the rest sorted.
func (c Config) LayerNames() []string {
	names := make([]string, 0, len(c.Layers)+1)
	for name := range c.Layers {
		names = append(names, name)
	}
	sort.Strings(names)
	return append([]string{elevationLayer}, names...)
}
