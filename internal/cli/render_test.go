package cli

import (
	"testing"

	"github.com/ccsr-gis/watershed3d/pkg/pipeline"
	"github.com/ccsr-gis/watershed3d/pkg/raster"
)

func TestExportName(t *testing.T) {
	tests := []struct {
		layer, format, want string
	}{
		{"elevation", "html", "watershed_dem_elevation.html"},
		{"nlcd", "png", "watershed_dem_nlcd.png"},
		{"runoff", "html", "watershed_dem_runoff.html"},
	}
	for _, tt := range tests {
		if got := exportName(tt.layer, tt.format); got != tt.want {
			t.Errorf("exportName(%q, %q) = %q, want %q", tt.layer, tt.format, got, tt.want)
		}
	}
}

func TestPipelineOptionsMapping(t *testing.T) {
	cfg := DefaultConfig()

	nlcd, err := cfg.Layer("nlcd")
	if err != nil {
		t.Fatal(err)
	}
	opts := pipelineOptions(cfg, nlcd, 2, true)
	if opts.DEMPath != cfg.DEM {
		t.Errorf("DEMPath = %q", opts.DEMPath)
	}
	if opts.OverlayPath != nlcd.Path || !opts.Categorical {
		t.Errorf("overlay options = %+v", opts)
	}
	if opts.Resampling() != raster.Nearest {
		t.Error("categorical layer must map to nearest resampling")
	}
	if !opts.Refresh {
		t.Error("no-cache should request a refresh")
	}
	if opts.ScaleZ != 2 {
		t.Errorf("ScaleZ = %v", opts.ScaleZ)
	}

	elev, err := cfg.Layer("elevation")
	if err != nil {
		t.Fatal(err)
	}
	opts = pipelineOptions(cfg, elev, 0, false)
	if opts.OverlayPath != "" {
		t.Error("elevation layer drapes nothing")
	}
	if opts.Ramp != "gist_earth" {
		t.Errorf("Ramp = %q", opts.Ramp)
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if opts.ScaleZ != pipeline.DefaultScaleZ {
		t.Errorf("ScaleZ default = %v", opts.ScaleZ)
	}
}

func TestSceneTitle(t *testing.T) {
	if got := sceneTitle(Layer{Name: "nlcd"}); got != "Watershed DEM (nlcd)" {
		t.Errorf("sceneTitle = %q", got)
	}
}
