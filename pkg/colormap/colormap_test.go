package colormap

import (
	"image/color"
	"math"
	"testing"

	"github.com/ccsr-gis/watershed3d/pkg/errors"
)

func TestContinuousEndpoints(t *testing.T) {
	table, err := Continuous("viridis", 100, 500)
	if err != nil {
		t.Fatalf("Continuous: %v", err)
	}

	if !table.IsContinuous() {
		t.Error("ramp table should be continuous")
	}
	if got := table.Hex(100); got != "#440154" {
		t.Errorf("Hex(min) = %q, want #440154", got)
	}
	if got := table.Hex(500); got != "#fde725" {
		t.Errorf("Hex(max) = %q, want #fde725", got)
	}

	// Out-of-range values clamp to the ramp ends.
	if table.Hex(-50) != table.Hex(100) {
		t.Error("below-range value should clamp to the min color")
	}
	if table.Hex(9000) != table.Hex(500) {
		t.Errorf("above-range value should clamp to the max color")
	}
}

func TestContinuousUnknownRamp(t *testing.T) {
	_, err := Continuous("plasma_deluxe", 0, 1)
	if !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("error code = %v, want INVALID_CONFIG", errors.GetCode(err))
	}
}

func TestContinuousDegenerateRange(t *testing.T) {
	table, err := Continuous("viridis", 42, 42)
	if err != nil {
		t.Fatalf("Continuous: %v", err)
	}
	if got := table.Hex(42); got != "#440154" {
		t.Errorf("flat raster should color at the ramp start, got %q", got)
	}
}

func TestContinuousSwappedRange(t *testing.T) {
	table, err := Continuous("viridis", 500, 100)
	if err != nil {
		t.Fatalf("Continuous: %v", err)
	}
	min, max := table.Range()
	if min != 100 || max != 500 {
		t.Errorf("Range = (%v, %v), want (100, 500)", min, max)
	}
}

func TestLookupNaN(t *testing.T) {
	table, _ := Continuous("viridis", 0, 1)
	if _, ok := table.Lookup(math.NaN()); ok {
		t.Error("NaN should have no color")
	}
	if table.Hex(math.NaN()) != "" {
		t.Error("Hex(NaN) should be empty")
	}
}

func TestStops(t *testing.T) {
	table, _ := Continuous("viridis_r", 0, 1)
	stops := table.Stops(5)
	if len(stops) != 5 {
		t.Fatalf("len(Stops(5)) = %d", len(stops))
	}
	if stops[0] != "#fde725" || stops[4] != "#440154" {
		t.Errorf("stop endpoints = %q, %q", stops[0], stops[4])
	}
}

func TestAllRampsParse(t *testing.T) {
	for _, name := range RampNames() {
		if _, err := Continuous(name, 0, 1); err != nil {
			t.Errorf("ramp %s: %v", name, err)
		}
	}
}

func TestCategorical(t *testing.T) {
	pal := map[uint16]color.NRGBA{
		11: {R: 70, G: 107, B: 159, A: 255},
		82: {R: 171, G: 112, B: 40, A: 255},
	}
	table, err := Categorical(pal)
	if err != nil {
		t.Fatalf("Categorical: %v", err)
	}

	if table.IsContinuous() {
		t.Error("palette table should not be continuous")
	}
	if got := table.Hex(11); got != "#466b9f" {
		t.Errorf("Hex(11) = %q, want #466b9f", got)
	}
	if _, ok := table.Lookup(12); ok {
		t.Error("unknown class should have no color")
	}
	if table.Stops(5) != nil {
		t.Error("categorical table should have no gradient stops")
	}

	classes := table.Classes()
	if len(classes) != 2 || classes[0] != 11 || classes[1] != 82 {
		t.Errorf("Classes = %v, want [11 82]", classes)
	}
}

func TestCategoricalMissingPalette(t *testing.T) {
	for _, pal := range []map[uint16]color.NRGBA{nil, {}} {
		_, err := Categorical(pal)
		if !errors.Is(err, errors.ErrCodeNoPalette) {
			t.Errorf("error code = %v, want NO_PALETTE", errors.GetCode(err))
		}
	}
}
