package scene

import (
	"bytes"
	"image/color"
	"image/png"
	"math"
	"strings"
	"testing"

	"github.com/ccsr-gis/watershed3d/pkg/colormap"
)

func testMesh(t *testing.T) *Mesh {
	t.Helper()
	dem := testDEM()
	dem.SetValue(0, 1, math.NaN())
	m, err := Build(dem, nil, 2)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestRenderHTMLContinuous(t *testing.T) {
	m := testMesh(t)
	table, err := colormap.Continuous("gist_earth", m.VMin, m.VMax)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := RenderHTML(&buf, m, table, "Elevation"); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Elevation") {
		t.Error("page should carry the layer title")
	}
	if !strings.Contains(out, "echarts") {
		t.Error("page should embed the chart runtime")
	}
}

func TestRenderHTMLCategorical(t *testing.T) {
	m := testMesh(t)
	table, err := colormap.Categorical(map[uint16]color.NRGBA{
		11: {R: 70, G: 107, B: 159, A: 255},
		82: {R: 171, G: 112, B: 40, A: 255},
	})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := RenderHTML(&buf, m, table, "Land Cover"); err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	// Each class keeps its exact palette color in the visual map.
	if !strings.Contains(buf.String(), "#466b9f") {
		t.Error("visual map should carry the class colors")
	}
}

func TestRenderPNG(t *testing.T) {
	m := testMesh(t)
	table, err := colormap.Continuous("viridis", m.VMin, m.VMax)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := RenderPNG(&buf, m, table); err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		t.Fatal("empty image")
	}
	cell := bounds.Dx() / m.Width

	// A data cell is opaque, the nodata cell transparent.
	_, _, _, a := img.At(cell/2, cell/2).RGBA()
	if a == 0 {
		t.Error("data cell should be opaque")
	}
	_, _, _, a = img.At(cell/2, cell+cell/2).RGBA()
	if a != 0 {
		t.Error("nodata cell should stay transparent")
	}
}

func TestRenderPNGDeterministic(t *testing.T) {
	m := testMesh(t)
	table, err := colormap.Continuous("viridis", m.VMin, m.VMax)
	if err != nil {
		t.Fatal(err)
	}

	var a, b bytes.Buffer
	if err := RenderPNG(&a, m, table); err != nil {
		t.Fatal(err)
	}
	if err := RenderPNG(&b, m, table); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("identical inputs should render identical bytes")
	}
}

func TestHillshadeFlatSurface(t *testing.T) {
	dem := testDEM()
	for row := 0; row < 2; row++ {
		for col := 0; col < 3; col++ {
			dem.SetValue(col, row, 250)
		}
	}
	m, err := Build(dem, nil, 1)
	if err != nil {
		t.Fatal(err)
	}

	shade := hillshade(m)
	want := math.Sin(sunAltitudeDeg * math.Pi / 180)
	for i, s := range shade {
		if math.Abs(s-want) > 1e-9 {
			t.Fatalf("flat cell %d shade = %v, want %v", i, s, want)
		}
	}
}
