// Package colormap turns raster values into display colors, either by
// stretching a named ramp over a value range or by looking class codes up in
// an embedded palette.
package colormap

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/ccsr-gis/watershed3d/pkg/errors"
)

// Table maps raster values to display colors. A table is either continuous
// (a named ramp stretched over [min, max]) or categorical (an explicit class
// palette, typically read from a GeoTIFF color table).
type Table struct {
	ramp    string
	stops   []colorful.Color
	min     float64
	max     float64
	classes map[uint16]color.NRGBA
}

// Continuous builds a table that stretches the named ramp over [min, max].
// Values outside the range clamp to the ramp ends.
func Continuous(ramp string, min, max float64) (*Table, error) {
	hexes, ok := ramps[ramp]
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown color ramp %q", ramp)
	}
	if max < min {
		min, max = max, min
	}
	stops := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "ramp %s stop %d", ramp, i)
		}
		stops[i] = c
	}
	return &Table{ramp: ramp, stops: stops, min: min, max: max}, nil
}

// Categorical builds a table from a class palette.
func Categorical(palette map[uint16]color.NRGBA) (*Table, error) {
	if len(palette) == 0 {
		return nil, errors.New(errors.ErrCodeNoPalette, "categorical layer carries no color table")
	}
	return &Table{classes: palette}, nil
}

// IsContinuous reports whether the table is a stretched ramp rather than a
// class palette.
func (t *Table) IsContinuous() bool { return t.classes == nil }

// Name returns the ramp name, or "" for a categorical table.
func (t *Table) Name() string { return t.ramp }

// Range returns the value range a continuous table is stretched over.
func (t *Table) Range() (min, max float64) { return t.min, t.max }

// Lookup returns the color for a value. NaN, and class codes missing from
// the palette, report ok = false.
func (t *Table) Lookup(v float64) (color.NRGBA, bool) {
	if math.IsNaN(v) {
		return color.NRGBA{}, false
	}
	if t.classes != nil {
		c, ok := t.classes[uint16(v)]
		return c, ok
	}
	r, g, b := t.at(t.pos(v)).RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, true
}

// Hex returns the value's color as "#rrggbb", or "" when the value has none.
func (t *Table) Hex(v float64) string {
	c, ok := t.Lookup(v)
	if !ok {
		return ""
	}
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Stops samples n evenly spaced hex colors across the ramp, in the shape a
// chart's in-range gradient expects. Categorical tables have no stops.
func (t *Table) Stops(n int) []string {
	if t.classes != nil || n < 2 {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = t.at(float64(i) / float64(n-1)).Hex()
	}
	return out
}

// Classes returns the palette's class codes in ascending order.
func (t *Table) Classes() []uint16 {
	if t.classes == nil {
		return nil
	}
	out := make([]uint16, 0, len(t.classes))
	for code := range t.classes {
		out = append(out, code)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// pos maps v into [0, 1] over the table's range.
func (t *Table) pos(v float64) float64 {
	if t.max == t.min {
		return 0
	}
	p := (v - t.min) / (t.max - t.min)
	return math.Max(0, math.Min(1, p))
}

// at interpolates the ramp at position p in [0, 1].
func (t *Table) at(p float64) colorful.Color {
	n := len(t.stops)
	if n == 1 {
		return t.stops[0]
	}
	f := p * float64(n-1)
	i := int(math.Floor(f))
	if i >= n-1 {
		return t.stops[n-1]
	}
	return t.stops[i].BlendRgb(t.stops[i+1], f-float64(i))
}
