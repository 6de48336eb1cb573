package raster

import (
	"math"
	"testing"
)

// testTransform is a 10m north-up grid with its top-left corner at (1000, 2000).
var testTransform = Transform{OriginX: 1000, OriginY: 2000, Dx: 10, Dy: -10}

func TestTransformRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		col, row int
	}{
		{"origin cell", 0, 0},
		{"interior cell", 3, 2},
		{"last-ish cell", 9, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := testTransform.CellCenter(tt.col, tt.row)
			px, py := testTransform.Cell(x, y)
			if int(math.Floor(px)) != tt.col || int(math.Floor(py)) != tt.row {
				t.Errorf("Cell(CellCenter(%d,%d)) = (%.2f, %.2f)", tt.col, tt.row, px, py)
			}
			// Centers land on the half-pixel.
			if px != float64(tt.col)+0.5 || py != float64(tt.row)+0.5 {
				t.Errorf("center pixel coord = (%.2f, %.2f), want (%v, %v)", px, py, float64(tt.col)+0.5, float64(tt.row)+0.5)
			}
		})
	}
}

func TestCellCenter(t *testing.T) {
	x, y := testTransform.CellCenter(0, 0)
	if x != 1005 || y != 1995 {
		t.Errorf("CellCenter(0,0) = (%v, %v), want (1005, 1995)", x, y)
	}
}

func TestValueAccess(t *testing.T) {
	r := New(4, 3, testTransform, "+proj=longlat +datum=WGS84 +no_defs")

	// New rasters start as nodata.
	if !math.IsNaN(r.Value(1, 1)) {
		t.Error("fresh raster cell should be NaN")
	}

	r.SetValue(1, 1, 42)
	if got := r.Value(1, 1); got != 42 {
		t.Errorf("Value(1,1) = %v, want 42", got)
	}

	// Out-of-range access is NaN, not a panic.
	if !math.IsNaN(r.Value(-1, 0)) || !math.IsNaN(r.Value(4, 0)) || !math.IsNaN(r.Value(0, 3)) {
		t.Error("out-of-range Value should be NaN")
	}
	r.SetValue(99, 99, 1) // no-op
}

func TestBounds(t *testing.T) {
	r := New(4, 3, testTransform, "")
	minX, minY, maxX, maxY := r.Bounds()
	if minX != 1000 || maxX != 1040 || minY != 1970 || maxY != 2000 {
		t.Errorf("Bounds = (%v, %v, %v, %v)", minX, minY, maxX, maxY)
	}
}

func TestValueRange(t *testing.T) {
	r := New(2, 2, testTransform, "")
	if _, _, ok := r.ValueRange(); ok {
		t.Error("all-nodata raster should have no range")
	}

	r.SetValue(0, 0, 5)
	r.SetValue(1, 0, -2)
	r.SetValue(0, 1, 9)
	// (1,1) stays NaN and must not poison the range.
	min, max, ok := r.ValueRange()
	if !ok || min != -2 || max != 9 {
		t.Errorf("ValueRange = (%v, %v, %v), want (-2, 9, true)", min, max, ok)
	}
}

func TestClasses(t *testing.T) {
	r := New(3, 1, testTransform, "")
	r.SetValue(0, 0, 82)
	r.SetValue(1, 0, 41)
	r.SetValue(2, 0, 82)

	classes := r.Classes()
	if len(classes) != 2 || classes[0] != 41 || classes[1] != 82 {
		t.Errorf("Classes = %v, want [41 82]", classes)
	}
}

func TestSampleNearest(t *testing.T) {
	r := New(2, 2, testTransform, "")
	r.SetValue(0, 0, 1)
	r.SetValue(1, 0, 2)
	r.SetValue(0, 1, 3)
	r.SetValue(1, 1, 4)

	tests := []struct {
		px, py float64
		want   float64
	}{
		{0.5, 0.5, 1},
		{1.5, 0.5, 2},
		{0.9, 1.9, 3},
		{1.1, 1.1, 4},
	}
	for _, tt := range tests {
		if got := r.SampleNearest(tt.px, tt.py); got != tt.want {
			t.Errorf("SampleNearest(%v, %v) = %v, want %v", tt.px, tt.py, got, tt.want)
		}
	}

	if !math.IsNaN(r.SampleNearest(-0.1, 0.5)) {
		t.Error("outside sample should be NaN")
	}
}

func TestSampleBilinear(t *testing.T) {
	r := New(2, 1, testTransform, "")
	r.SetValue(0, 0, 0)
	r.SetValue(1, 0, 10)

	// Midway between the two cell centers.
	if got := r.SampleBilinear(1.0, 0.5); math.Abs(got-5) > 1e-9 {
		t.Errorf("SampleBilinear midpoint = %v, want 5", got)
	}
	// On a cell center.
	if got := r.SampleBilinear(0.5, 0.5); math.Abs(got) > 1e-9 {
		t.Errorf("SampleBilinear at center = %v, want 0", got)
	}
}

func TestSampleBilinearSkipsNoData(t *testing.T) {
	r := New(2, 1, testTransform, "")
	r.SetValue(0, 0, 10)
	// (1,0) stays NaN.

	// Interpolating toward the nodata cell renormalizes onto the finite one.
	if got := r.SampleBilinear(1.0, 0.5); got != 10 {
		t.Errorf("SampleBilinear near nodata = %v, want 10", got)
	}

	r2 := New(2, 1, testTransform, "")
	if !math.IsNaN(r2.SampleBilinear(1.0, 0.5)) {
		t.Error("all-nodata neighborhood should be NaN")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	r := New(2, 2, testTransform, "+proj=longlat +datum=NAD83 +no_defs")
	r.SetValue(0, 0, 1.5)
	r.SetValue(1, 1, -3)

	data, err := r.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.Width != 2 || got.Height != 2 || got.Proj4 != r.Proj4 || got.Transform != r.Transform {
		t.Errorf("metadata mismatch after roundtrip: %+v", got)
	}
	if got.Value(0, 0) != 1.5 || got.Value(1, 1) != -3 {
		t.Error("values mismatch after roundtrip")
	}
	if !math.IsNaN(got.Value(1, 0)) {
		t.Error("nodata should survive the roundtrip")
	}
}
