// Package raster provides the in-memory raster model for the viewer: a 2D
// grid of cell values with georeferencing, a pure-Go GeoTIFF reader, and the
// grid aligner that resamples overlay rasters onto the DEM grid.
//
// Cell values are stored as float64 regardless of the on-disk sample type;
// nodata cells are NaN. A Raster is immutable once loaded — the aligner
// always builds a new grid.
package raster

import (
	"bytes"
	"encoding/gob"
	"image/color"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Transform is the affine georeferencing of a north-up raster: the world
// coordinate of the top-left corner of cell (0,0) plus the cell size.
// Dy is negative for north-up rasters (rows advance southward).
type Transform struct {
	OriginX float64
	OriginY float64
	Dx      float64
	Dy      float64
}

// CellCenter returns the world coordinate of the center of cell (col, row).
func (t Transform) CellCenter(col, row int) (x, y float64) {
	return t.OriginX + (float64(col)+0.5)*t.Dx, t.OriginY + (float64(row)+0.5)*t.Dy
}

// Cell returns the fractional pixel coordinate of world point (x, y).
// Cell centers land on (col+0.5, row+0.5).
func (t Transform) Cell(x, y float64) (px, py float64) {
	return (x - t.OriginX) / t.Dx, (y - t.OriginY) / t.Dy
}

// Raster is a single-band grid of cell values plus georeferencing.
type Raster struct {
	Width  int
	Height int

	Transform Transform

	// Proj4 is the coordinate reference system as a proj4 string.
	Proj4 string

	// Palette is the embedded color table for categorical rasters
	// (NLCD, CDL), keyed by class code. Nil when the file carries none.
	Palette map[uint16]color.NRGBA

	// data is row-major; nodata cells are NaN.
	data []float64
}

// New allocates a raster of the given shape with all cells set to nodata.
func New(width, height int, tr Transform, proj4 string) *Raster {
	data := make([]float64, width*height)
	for i := range data {
		data[i] = math.NaN()
	}
	return &Raster{
		Width:     width,
		Height:    height,
		Transform: tr,
		Proj4:     proj4,
		data:      data,
	}
}

// Value returns the cell value at (col, row). Out-of-range cells are NaN.
func (r *Raster) Value(col, row int) float64 {
	if col < 0 || col >= r.Width || row < 0 || row >= r.Height {
		return math.NaN()
	}
	return r.data[row*r.Width+col]
}

// SetValue sets the cell value at (col, row). Out-of-range cells are ignored.
func (r *Raster) SetValue(col, row int, v float64) {
	if col < 0 || col >= r.Width || row < 0 || row >= r.Height {
		return
	}
	r.data[row*r.Width+col] = v
}

// Values returns the underlying row-major cell values. The slice is shared;
// callers must not modify it.
func (r *Raster) Values() []float64 {
	return r.data
}

// Bounds returns the raster extent in world coordinates (minX, minY, maxX, maxY).
func (r *Raster) Bounds() (minX, minY, maxX, maxY float64) {
	x0 := r.Transform.OriginX
	y0 := r.Transform.OriginY
	x1 := x0 + float64(r.Width)*r.Transform.Dx
	y1 := y0 + float64(r.Height)*r.Transform.Dy
	return math.Min(x0, x1), math.Min(y0, y1), math.Max(x0, x1), math.Max(y0, y1)
}

// ValueRange returns the min and max over all finite cells.
// ok is false when every cell is nodata.
func (r *Raster) ValueRange() (min, max float64, ok bool) {
	finite := make([]float64, 0, len(r.data))
	for _, v := range r.data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0, 0, false
	}
	return floats.Min(finite), floats.Max(finite), true
}

// Classes returns the distinct finite cell values in ascending order.
// Only meaningful for categorical rasters, where values are class codes.
func (r *Raster) Classes() []float64 {
	seen := make(map[float64]struct{})
	for _, v := range r.data {
		if !math.IsNaN(v) {
			seen[v] = struct{}{}
		}
	}
	classes := make([]float64, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Float64s(classes)
	return classes
}

// SampleNearest returns the value of the cell containing pixel coordinate
// (px, py). Points outside the grid are NaN.
func (r *Raster) SampleNearest(px, py float64) float64 {
	col := int(math.Floor(px))
	row := int(math.Floor(py))
	return r.Value(col, row)
}

// SampleBilinear interpolates between the four cell centers surrounding
// pixel coordinate (px, py). NaN neighbors are dropped and the remaining
// weights renormalized, so nodata edges don't bleed into the result; if all
// four neighbors are nodata the result is NaN.
func (r *Raster) SampleBilinear(px, py float64) float64 {
	// Shift into cell-center space: center of cell (c, r) is at (c+0.5, r+0.5).
	gx := px - 0.5
	gy := py - 0.5
	c0 := int(math.Floor(gx))
	r0 := int(math.Floor(gy))
	fx := gx - float64(c0)
	fy := gy - float64(r0)

	var sum, wsum float64
	for _, n := range [4]struct {
		dc, dr int
		w      float64
	}{
		{0, 0, (1 - fx) * (1 - fy)},
		{1, 0, fx * (1 - fy)},
		{0, 1, (1 - fx) * fy},
		{1, 1, fx * fy},
	} {
		v := r.Value(c0+n.dc, r0+n.dr)
		if math.IsNaN(v) || n.w == 0 {
			continue
		}
		sum += v * n.w
		wsum += n.w
	}
	if wsum == 0 {
		return math.NaN()
	}
	return sum / wsum
}

// rasterWire is the gob representation of a Raster, used by the pipeline to
// cache aligned overlays.
type rasterWire struct {
	Width, Height int
	Transform     Transform
	Proj4         string
	Palette       map[uint16]color.NRGBA
	Data          []float64
}

// Marshal encodes the raster for caching.
func (r *Raster) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(rasterWire{
		Width:     r.Width,
		Height:    r.Height,
		Transform: r.Transform,
		Proj4:     r.Proj4,
		Palette:   r.Palette,
		Data:      r.data,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a raster produced by Marshal.
func Unmarshal(data []byte) (*Raster, error) {
	var w rasterWire
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return nil, err
	}
	return &Raster{
		Width:     w.Width,
		Height:    w.Height,
		Transform: w.Transform,
		Proj4:     w.Proj4,
		Palette:   w.Palette,
		data:      w.Data,
	}, nil
}
