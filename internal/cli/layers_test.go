package cli

import (
	"testing"

	"github.com/ccsr-gis/watershed3d/pkg/raster"
)

func TestExtentDetail(t *testing.T) {
	tr := raster.Transform{OriginX: 580000, OriginY: 4700000, Dx: 10, Dy: -10}
	r := raster.New(4, 3, tr, "+proj=utm +zone=18 +datum=NAD83")

	got := extentDetail(r)
	want := "4x3 cells, extent 580000,4699970 to 580040,4700000"
	if got != want {
		t.Errorf("extentDetail = %q, want %q", got, want)
	}
}

func TestFileStatus(t *testing.T) {
	if got := fileStatus(t.TempDir() + "/absent.tif"); got != StyleWarning.Render("(missing)") {
		t.Errorf("fileStatus for a missing file = %q", got)
	}
}
