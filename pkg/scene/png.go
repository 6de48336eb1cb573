package scene

import (
	"io"
	"math"

	"github.com/fogleman/gg"

	"github.com/ccsr-gis/watershed3d/pkg/colormap"
)

const (
	sunAzimuthDeg  = 315.0 // light from the northwest
	sunAltitudeDeg = 45.0
	ambientLight   = 0.35
	maxImageDim    = 1200
)

// RenderPNG writes a static top-down render of the mesh: the layer's colors
// modulated by a Lambertian hillshade of the exaggerated surface. Nodata
// cells stay transparent. Output is deterministic for a given mesh and
// table.
func RenderPNG(w io.Writer, m *Mesh, table *colormap.Table) error {
	cell := maxImageDim / maxInt(m.Width, m.Height)
	if cell < 1 {
		cell = 1
	}
	dc := gg.NewContext(m.Width*cell, m.Height*cell)

	shade := hillshade(m)
	for row := 0; row < m.Height; row++ {
		for col := 0; col < m.Width; col++ {
			if math.IsNaN(m.ZAt(col, row)) {
				continue
			}
			c, ok := table.Lookup(m.ValueAt(col, row))
			if !ok {
				continue
			}
			s := ambientLight + (1-ambientLight)*shade[row*m.Width+col]
			dc.SetRGBA255(
				int(float64(c.R)*s),
				int(float64(c.G)*s),
				int(float64(c.B)*s),
				255,
			)
			dc.DrawRectangle(float64(col*cell), float64(row*cell), float64(cell), float64(cell))
			dc.Fill()
		}
	}
	return dc.EncodePNG(w)
}

// hillshade computes per-cell illumination in [0, 1] from the scaled
// surface, using central differences where neighbors exist.
func hillshade(m *Mesh) []float64 {
	azimuth := sunAzimuthDeg * math.Pi / 180
	altitude := sunAltitudeDeg * math.Pi / 180
	lx := math.Sin(azimuth) * math.Cos(altitude)
	ly := math.Cos(azimuth) * math.Cos(altitude)
	lz := math.Sin(altitude)

	out := make([]float64, m.Width*m.Height)
	for row := 0; row < m.Height; row++ {
		for col := 0; col < m.Width; col++ {
			z := m.ZAt(col, row)
			if math.IsNaN(z) {
				continue
			}

			dzdx := slope(neighbor(m, col-1, row, z), neighbor(m, col+1, row, z), m.DX)
			// Row index grows southward, so north is row-1.
			dzdy := slope(neighbor(m, col, row+1, z), neighbor(m, col, row-1, z), m.DY)

			nx, ny, nz := -dzdx, -dzdy, 1.0
			norm := math.Sqrt(nx*nx + ny*ny + nz*nz)
			s := (nx*lx + ny*ly + nz*lz) / norm
			out[row*m.Width+col] = math.Max(0, math.Min(1, s))
		}
	}
	return out
}

// neighbor returns the scaled elevation at a cell, falling back to the
// center value at edges and holes.
func neighbor(m *Mesh, col, row int, center float64) float64 {
	if col < 0 || col >= m.Width || row < 0 || row >= m.Height {
		return center
	}
	z := m.ZAt(col, row)
	if math.IsNaN(z) {
		return center
	}
	return z
}

func slope(west, east, spacing float64) float64 {
	return (east - west) / (2 * spacing)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
