package raster

import (
	"math"

	"github.com/ctessum/geom/proj"

	"github.com/ccsr-gis/watershed3d/pkg/errors"
)

// Resampling selects how overlay cells are sampled during alignment.
type Resampling int

const (
	// Nearest takes the single closest overlay cell. Required for
	// categorical rasters: it can never invent a class code that isn't in
	// the source.
	Nearest Resampling = iota

	// Bilinear interpolates the four surrounding cells. For continuous
	// rasters only.
	Bilinear
)

// String returns the resampling name (also used in cache keys).
func (m Resampling) String() string {
	if m == Bilinear {
		return "bilinear"
	}
	return "nearest"
}

// Align resamples overlay onto the DEM's exact grid: same dimensions, same
// transform, same CRS. Each DEM cell center is projected into the overlay's
// CRS and sampled with the requested method; cells falling outside the
// overlay become nodata. If no DEM cell lands inside the overlay extent at
// all, the overlay doesn't cover the DEM and Align fails with a
// NO_OVERLAP error.
func Align(dem, overlay *Raster, method Resampling) (*Raster, error) {
	var trans proj.Transformer
	if dem.Proj4 != overlay.Proj4 {
		demSR, err := proj.Parse(dem.Proj4)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeCRS, err, "parse DEM CRS")
		}
		overlaySR, err := proj.Parse(overlay.Proj4)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeCRS, err, "parse overlay CRS")
		}
		trans, err = demSR.NewTransform(overlaySR)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeCRS, err, "build CRS transform")
		}
	}

	out := New(dem.Width, dem.Height, dem.Transform, dem.Proj4)
	out.Palette = overlay.Palette

	hits := 0
	for row := 0; row < dem.Height; row++ {
		for col := 0; col < dem.Width; col++ {
			x, y := dem.Transform.CellCenter(col, row)
			if trans != nil {
				var err error
				x, y, err = trans(x, y)
				if err != nil {
					continue // outside the projection's domain
				}
			}

			px, py := overlay.Transform.Cell(x, y)
			if px < 0 || px >= float64(overlay.Width) || py < 0 || py >= float64(overlay.Height) {
				continue
			}
			hits++

			var v float64
			if method == Bilinear {
				v = overlay.SampleBilinear(px, py)
			} else {
				v = overlay.SampleNearest(px, py)
			}
			if !math.IsNaN(v) {
				out.SetValue(col, row, v)
			}
		}
	}

	if hits == 0 {
		return nil, errors.New(errors.ErrCodeNoOverlap, "overlay does not intersect the DEM extent")
	}
	return out, nil
}
