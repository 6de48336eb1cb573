package pipeline

import (
	"context"
	"image/color"
	"math"
	"testing"

	"github.com/ccsr-gis/watershed3d/pkg/cache"
	"github.com/ccsr-gis/watershed3d/pkg/errors"
	"github.com/ccsr-gis/watershed3d/pkg/raster"
)

const utm18 = "+proj=tmerc +lat_0=0 +lon_0=-75 +k=0.9996 +x_0=500000 +y_0=0 +datum=NAD83 +units=m +no_defs"

func testDEM() *raster.Raster {
	dem := raster.New(4, 4, raster.Transform{OriginX: 580000, OriginY: 4700000, Dx: 10, Dy: -10}, utm18)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			dem.SetValue(col, row, float64(300+row*4+col))
		}
	}
	return dem
}

func TestOptionsDefaults(t *testing.T) {
	opts := Options{DEMPath: "dem.tif"}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("ValidateAndSetDefaults: %v", err)
	}

	if opts.ScaleZ != DefaultScaleZ {
		t.Errorf("ScaleZ = %v, want %v", opts.ScaleZ, DefaultScaleZ)
	}
	if opts.Ramp != DefaultRamp {
		t.Errorf("Ramp = %q, want %q", opts.Ramp, DefaultRamp)
	}
	if len(opts.Formats) != 1 || opts.Formats[0] != FormatHTML {
		t.Errorf("Formats = %v, want [html]", opts.Formats)
	}
	if opts.Logger == nil {
		t.Error("logger should default")
	}
}

func TestOptionsValidation(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{"missing DEM", Options{}, errors.ErrCodeInvalidConfig},
		{"negative scale", Options{DEMPath: "d.tif", ScaleZ: -2}, errors.ErrCodeInvalidScale},
		{"bad format", Options{DEMPath: "d.tif", Formats: []string{"pdf"}}, errors.ErrCodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if !errors.Is(err, tt.code) {
				t.Errorf("code = %v, want %v", errors.GetCode(err), tt.code)
			}
		})
	}
}

func TestOptionsResampling(t *testing.T) {
	categorical := Options{Categorical: true}
	if categorical.Resampling() != raster.Nearest {
		t.Error("categorical overlays must use nearest-neighbor sampling")
	}
	continuous := Options{}
	if continuous.Resampling() != raster.Bilinear {
		t.Error("continuous overlays use bilinear sampling")
	}
}

func TestBuildSceneElevation(t *testing.T) {
	dem := testDEM()

	mesh, table, err := BuildScene(dem, nil, Options{DEMPath: "d.tif", ScaleZ: 2})
	if err != nil {
		t.Fatalf("BuildScene: %v", err)
	}
	if !table.IsContinuous() {
		t.Error("elevation coloring should be continuous")
	}
	min, max := table.Range()
	if min != 300 || max != 315 {
		t.Errorf("table range = (%v, %v), want raw elevations (300, 315)", min, max)
	}
	if mesh.ZMax != 315*2 {
		t.Errorf("ZMax = %v, want %v", mesh.ZMax, 315*2)
	}
}

func TestBuildSceneContinuousRangeFromRaster(t *testing.T) {
	dem := testDEM()
	dem.SetValue(0, 0, math.NaN()) // hole hides the overlay cell beneath it

	overlay := raster.New(4, 4, dem.Transform, dem.Proj4)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			overlay.SetValue(col, row, 0.5)
		}
	}
	overlay.SetValue(1, 1, 0.2)
	overlay.SetValue(2, 2, 0.8)
	overlay.SetValue(0, 0, 5) // visible only to the value range, not the mesh

	mesh, table, err := BuildScene(dem, overlay, Options{DEMPath: "d.tif", Ramp: "viridis_r"})
	if err != nil {
		t.Fatalf("BuildScene: %v", err)
	}

	// The ramp stretches over the raster's finite range, so the cell under
	// the DEM hole still anchors the scale.
	min, max := table.Range()
	if min != 0.2 || max != 5 {
		t.Errorf("table range = (%v, %v), want (0.2, 5)", min, max)
	}
	if mesh.VMax != 0.8 {
		t.Errorf("mesh VMax = %v, want 0.8 (hole cell excluded)", mesh.VMax)
	}
}

func TestBuildSceneContinuousAllNoData(t *testing.T) {
	dem := testDEM()
	overlay := raster.New(4, 4, dem.Transform, dem.Proj4) // every cell NaN

	_, _, err := BuildScene(dem, overlay, Options{DEMPath: "d.tif"})
	if !errors.Is(err, errors.ErrCodeUnsupportedRaster) {
		t.Errorf("code = %v, want UNSUPPORTED_RASTER", errors.GetCode(err))
	}
}

func TestBuildSceneCategorical(t *testing.T) {
	dem := testDEM()
	overlay := raster.New(4, 4, dem.Transform, dem.Proj4)
	overlay.SetValue(0, 0, 11)
	overlay.Palette = map[uint16]color.NRGBA{11: {R: 70, G: 107, B: 159, A: 255}}

	_, table, err := BuildScene(dem, overlay, Options{DEMPath: "d.tif", Categorical: true})
	if err != nil {
		t.Fatalf("BuildScene: %v", err)
	}
	if table.IsContinuous() {
		t.Error("categorical layer should color from the palette")
	}
}

func TestBuildSceneCategoricalWithoutPalette(t *testing.T) {
	dem := testDEM()
	overlay := raster.New(4, 4, dem.Transform, dem.Proj4)

	_, _, err := BuildScene(dem, overlay, Options{DEMPath: "d.tif", Categorical: true})
	if !errors.Is(err, errors.ErrCodeNoPalette) {
		t.Errorf("code = %v, want NO_PALETTE", errors.GetCode(err))
	}
}

func TestAlignCacheHitSkipsFiles(t *testing.T) {
	dem := testDEM()
	aligned := raster.New(4, 4, dem.Transform, dem.Proj4)
	aligned.SetValue(1, 1, 82)
	data, err := aligned.Marshal()
	if err != nil {
		t.Fatal(err)
	}

	opts := Options{
		DEMPath:     "missing-dem.tif",
		OverlayPath: "missing-overlay.tif",
		Categorical: true,
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}

	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := cache.Key("align",
		fileSignature(opts.DEMPath),
		fileSignature(opts.OverlayPath),
		opts.Resampling().String(),
	)
	if err := c.Set(context.Background(), key, data, cache.TTLAlign); err != nil {
		t.Fatal(err)
	}

	runner := NewRunner(c, nil)
	defer runner.Close()

	// The overlay files don't exist; a hit must be served from cache alone.
	got, hit, err := runner.AlignWithCacheInfo(context.Background(), dem, opts)
	if err != nil {
		t.Fatalf("AlignWithCacheInfo: %v", err)
	}
	if !hit {
		t.Fatal("expected a cache hit")
	}
	if got.Value(1, 1) != 82 {
		t.Errorf("cached overlay cell = %v, want 82", got.Value(1, 1))
	}
}

func TestAlignCacheMissReadsFiles(t *testing.T) {
	dem := testDEM()
	opts := Options{
		DEMPath:     "missing-dem.tif",
		OverlayPath: "missing-overlay.tif",
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}

	runner := NewRunner(nil, nil) // null cache
	defer runner.Close()

	_, _, err := runner.AlignWithCacheInfo(context.Background(), dem, opts)
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("code = %v, want FILE_NOT_FOUND", errors.GetCode(err))
	}
}

func TestExecuteMissingDEM(t *testing.T) {
	runner := NewRunner(nil, nil)
	defer runner.Close()

	_, err := runner.Execute(context.Background(), Options{DEMPath: "does-not-exist.tif"})
	if !errors.Is(err, errors.ErrCodeFileNotFound) {
		t.Errorf("code = %v, want FILE_NOT_FOUND", errors.GetCode(err))
	}
}
