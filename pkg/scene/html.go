package scene

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ccsr-gis/watershed3d/pkg/colormap"
)

// rampStops is how many gradient samples the chart's in-range color bar gets.
const rampStops = 10

// RenderHTML writes a self-contained interactive 3D surface page. The page
// loads echarts from its CDN and supports orbit, zoom, and the visual-map
// slider in the browser.
func RenderHTML(w io.Writer, m *Mesh, table *colormap.Table, title string) error {
	surface := charts.NewSurface3D()

	boxWidth, boxDepth := boxShape(m)
	surface.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: title,
			Width:     "1200px",
			Height:    "820px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("vertical exaggeration %gx", m.ScaleZ),
		}),
		charts.WithGrid3DOpts(opts.Grid3D{
			BoxWidth:  boxWidth,
			BoxDepth:  boxDepth,
			BoxHeight: 40,
		}),
		charts.WithXAxis3DOpts(opts.XAxis3D{Name: "easting (m)", Type: "value"}),
		charts.WithYAxis3DOpts(opts.YAxis3D{Name: "northing (m)", Type: "value"}),
		charts.WithZAxis3DOpts(opts.ZAxis3D{Name: "elevation", Type: "value"}),
		charts.WithVisualMapOpts(visualMap(m, table)),
	)

	surface.AddSeries(title, surfaceData(m))
	return surface.Render(w)
}

// surfaceData flattens the mesh into (x, y, z, value) points in row-major
// order. Holes keep their grid slot with null z so the surface topology
// stays intact.
func surfaceData(m *Mesh) []opts.Chart3DData {
	data := make([]opts.Chart3DData, 0, m.Width*m.Height)
	for row := 0; row < m.Height; row++ {
		for col := 0; col < m.Width; col++ {
			z := m.ZAt(col, row)
			if math.IsNaN(z) {
				data = append(data, opts.Chart3DData{
					Value: []interface{}{m.X[col], m.Y[row], nil, nil},
				})
				continue
			}
			data = append(data, opts.Chart3DData{
				Value: []interface{}{m.X[col], m.Y[row], z, m.ValueAt(col, row)},
			})
		}
	}
	return data
}

// visualMap colors the fourth data dimension. Continuous layers stretch the
// table's ramp between the mesh value range; categorical layers get one
// color slot per integer code so every class lands exactly on its palette
// entry instead of a blend.
func visualMap(m *Mesh, table *colormap.Table) opts.VisualMap {
	vm := opts.VisualMap{
		Show:       opts.Bool(true),
		Calculable: opts.Bool(true),
		Dimension:  "3",
	}

	if table.IsContinuous() {
		min, max := table.Range()
		vm.Min = float32(min)
		vm.Max = float32(max)
		vm.InRange = &opts.VisualMapInRange{Color: table.Stops(rampStops)}
		return vm
	}

	codes := table.Classes()
	lo, hi := codes[0], codes[len(codes)-1]
	if lo == hi {
		hi = lo + 1 // a single class still needs a non-degenerate range
	}
	colors := make([]string, int(hi-lo)+1)
	for i := range colors {
		colors[i] = "#9e9e9e" // codes absent from the palette
	}
	for _, code := range codes {
		colors[code-lo] = table.Hex(float64(code))
	}
	vm.Min = float32(lo)
	vm.Max = float32(hi)
	vm.InRange = &opts.VisualMapInRange{Color: colors}
	return vm
}

// boxShape keeps the plotted box proportional to the raster footprint.
func boxShape(m *Mesh) (width, depth float32) {
	spanX := float64(m.Width) * m.DX
	spanY := float64(m.Height) * m.DY
	const base = 100.0
	if spanX >= spanY {
		return base, float32(base * spanY / spanX)
	}
	return float32(base * spanX / spanY), base
}
