// Package scene builds the renderable 3D surface from aligned rasters and
// writes it out as an interactive HTML page or a static PNG.
package scene

import (
	"math"

	"github.com/ccsr-gis/watershed3d/pkg/errors"
	"github.com/ccsr-gis/watershed3d/pkg/raster"
)

// Mesh is the renderable surface: one vertex per DEM cell at its cell
// center, with elevation exaggerated by ScaleZ and an unscaled value channel
// driving the color. Vertical exaggeration never touches the value channel,
// so the same layer colors identically at any scale.
type Mesh struct {
	Width  int
	Height int

	// X and Y hold per-column / per-row cell-center coordinates, shifted so
	// the grid's southwest corner sits at the origin. Y decreases with row:
	// row 0 is the northern edge.
	X []float64
	Y []float64

	// Z is elevation * ScaleZ in row-major order. NaN cells are holes.
	Z []float64

	// Value is the color channel, row-major, never scaled. For an elevation
	// rendering it repeats the raw (unexaggerated) elevations.
	Value []float64

	ScaleZ float64
	DX, DY float64 // cell size in CRS units, both positive

	ZMin, ZMax float64
	VMin, VMax float64
}

// Build constructs the mesh from a DEM and an optional overlay already
// aligned to the DEM's grid. A nil overlay colors the surface by elevation.
func Build(dem, overlay *raster.Raster, scaleZ float64) (*Mesh, error) {
	if math.IsNaN(scaleZ) || scaleZ <= 0 {
		return nil, errors.New(errors.ErrCodeInvalidScale, "z scale must be positive, got %v", scaleZ)
	}
	if overlay != nil && (overlay.Width != dem.Width || overlay.Height != dem.Height) {
		return nil, errors.New(errors.ErrCodeInternal,
			"overlay grid %dx%d does not match the DEM grid %dx%d",
			overlay.Width, overlay.Height, dem.Width, dem.Height)
	}

	dx := math.Abs(dem.Transform.Dx)
	dy := math.Abs(dem.Transform.Dy)

	m := &Mesh{
		Width:  dem.Width,
		Height: dem.Height,
		X:      make([]float64, dem.Width),
		Y:      make([]float64, dem.Height),
		Z:      make([]float64, dem.Width*dem.Height),
		Value:  make([]float64, dem.Width*dem.Height),
		ScaleZ: scaleZ,
		DX:     dx,
		DY:     dy,
		ZMin:   math.Inf(1),
		ZMax:   math.Inf(-1),
		VMin:   math.Inf(1),
		VMax:   math.Inf(-1),
	}
	for col := 0; col < dem.Width; col++ {
		m.X[col] = (float64(col) + 0.5) * dx
	}
	for row := 0; row < dem.Height; row++ {
		m.Y[row] = (float64(dem.Height-row) - 0.5) * dy
	}

	valid := 0
	for row := 0; row < dem.Height; row++ {
		for col := 0; col < dem.Width; col++ {
			i := row*dem.Width + col
			elev := dem.Value(col, row)

			z := elev * scaleZ
			v := elev
			if overlay != nil {
				v = overlay.Value(col, row)
			}
			if math.IsNaN(elev) {
				z, v = math.NaN(), math.NaN()
			}
			m.Z[i] = z
			m.Value[i] = v

			if !math.IsNaN(z) {
				valid++
				m.ZMin = math.Min(m.ZMin, z)
				m.ZMax = math.Max(m.ZMax, z)
			}
			if !math.IsNaN(v) {
				m.VMin = math.Min(m.VMin, v)
				m.VMax = math.Max(m.VMax, v)
			}
		}
	}
	if valid == 0 {
		return nil, errors.New(errors.ErrCodeUnsupportedRaster, "DEM has no valid cells")
	}
	return m, nil
}

// ZAt returns the scaled elevation at a cell, NaN for holes.
func (m *Mesh) ZAt(col, row int) float64 { return m.Z[row*m.Width+col] }

// ValueAt returns the unscaled color-channel value at a cell.
func (m *Mesh) ValueAt(col, row int) float64 { return m.Value[row*m.Width+col] }
