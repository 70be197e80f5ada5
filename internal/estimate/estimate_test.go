package estimate

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/layout"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate_FloorFormula(t *testing.T) {
	types := []BlockType{
		{ID: 1, Width: 50, Height: 25, Depth: 20, Price: 2.8},
		{ID: 2, Width: 25, Height: 25, Depth: 20, Price: 1.6},
	}
	s := Estimate(600, 300, types)

	assert.InDelta(t, 18.0, s.WallArea, 1e-9)
	require.Len(t, s.Blocks, 2)
	// 18 / 0.125 / 2 = 72 and 18 / 0.0625 / 2 = 144
	assert.Equal(t, 72, s.Blocks[0].Quantity)
	assert.Equal(t, 144, s.Blocks[1].Quantity)
	assert.Equal(t, "50x25x20", s.Blocks[0].Dimensions)
	assert.InDelta(t, 201.6, s.Blocks[0].TotalPrice, 1e-9)
	assert.InDelta(t, 230.4, s.Blocks[1].TotalPrice, 1e-9)
	assert.InDelta(t, 432.0, s.TotalPrice, 1e-9)
}

func TestEstimate_NoTypes(t *testing.T) {
	s := Estimate(100, 100, nil)
	assert.NotNil(t, s.Blocks)
	assert.Empty(t, s.Blocks)
	assert.Zero(t, s.TotalPrice)
}

// TestEstimate_CountsMatchFloor checks quantities against the formula for
// random walls.
func TestEstimate_CountsMatchFloor(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("quantity is floor(area / block area / types)", prop.ForAll(
		func(w, h, bw, bh int, n int) bool {
			types := make([]BlockType, n)
			for i := range types {
				types[i] = BlockType{ID: i + 1, Width: float64(bw), Height: float64(bh), Price: 1}
			}
			s := Estimate(float64(w), float64(h), types)
			area := (float64(w) / 100) * (float64(h) / 100)
			want := int(math.Floor(area / ((float64(bw) / 100) * (float64(bh) / 100)) / float64(n)))
			for _, l := range s.Blocks {
				if l.Quantity != want {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 2000),
		gen.IntRange(1, 1000),
		gen.IntRange(5, 100),
		gen.IntRange(5, 50),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}

func TestEstimateLayout(t *testing.T) {
	l, err := layout.FromManual(layout.ManualInput{
		Width:    600,
		Height:   300,
		Openings: []layout.Rectangle{{X: 50, Y: 0, W: 100, H: 210, Type: layout.KindDoor}},
	})
	require.NoError(t, err)

	types := []BlockType{{ID: 1, Width: 50, Height: 25, Depth: 20, Price: 2, Density: 1000}}
	s, err := EstimateLayout(l, types, Options{JointThickness: 0})
	require.NoError(t, err)

	assert.InDelta(t, 18.0, s.GrossArea, 1e-9)
	assert.InDelta(t, 2.1, s.OpeningArea, 1e-9)
	assert.InDelta(t, 15.9, s.WallArea, 1e-9)
	assert.Equal(t, 127, s.Blocks[0].Quantity)
	assert.InDelta(t, 3.18, s.WallVolume, 1e-9)
	assert.Zero(t, s.MortarVolume)
	assert.InDelta(t, 3180, s.WallWeight, 1e-6)

	s, err = EstimateLayout(l, types, Options{JointThickness: 1, Depth: 25})
	require.NoError(t, err)
	assert.InDelta(t, 3.975, s.WallVolume, 1e-9)
	frac := 1 - 50.0*25/(51*26)
	assert.InDelta(t, 3.975*frac, s.MortarVolume, 1e-9)
	assert.InDelta(t, (3.975-s.MortarVolume)*1000+s.MortarVolume*MortarDensity, s.WallWeight, 1e-6)
}

func TestEstimateLayout_Errors(t *testing.T) {
	types := DefaultCatalog().Blocks
	_, err := EstimateLayout(nil, types, DefaultOptions())
	assert.True(t, errs.Is(err, errs.CodeInvalidInput))

	pixels := &layout.Layout{Wall: layout.Rectangle{W: 10, H: 10}}
	_, err = EstimateLayout(pixels, types, DefaultOptions())
	assert.True(t, errs.Is(err, errs.CodeInvalidInput))

	l, err := layout.FromManual(layout.ManualInput{Width: 100, Height: 100})
	require.NoError(t, err)
	_, err = EstimateLayout(l, nil, DefaultOptions())
	assert.True(t, errs.Is(err, errs.CodeInvalidInput))
	_, err = EstimateLayout(l, types, Options{JointThickness: -1})
	assert.True(t, errs.Is(err, errs.CodeInvalidDimensions))
}

func TestParseCatalog(t *testing.T) {
	docs := map[string]string{
		"toml": `
[[blocks]]
id = 7
name = "Clay"
width = 30
height = 20
depth = 25
price = 1.5
`,
		"yaml": `
blocks:
  - id: 7
    name: Clay
    width: 30
    height: 20
    depth: 25
    price: 1.5
`,
		"json": `{"blocks": [{"id": 7, "name": "Clay", "width": 30, "height": 20, "depth": 25, "price": 1.5}]}`,
	}
	want := BlockType{ID: 7, Name: "Clay", Width: 30, Height: 20, Depth: 25, Price: 1.5}
	for format, doc := range docs {
		t.Run(format, func(t *testing.T) {
			c, err := ParseCatalog([]byte(doc), format)
			require.NoError(t, err)
			assert.Equal(t, []BlockType{want}, c.Blocks)
		})
	}

	_, err := ParseCatalog([]byte("blocks = 1"), "ini")
	assert.True(t, errs.Is(err, errs.CodeUnsupportedFormat))
	_, err = ParseCatalog([]byte("{"), "json")
	assert.True(t, errs.Is(err, errs.CodeInvalidInput))
	_, err = ParseCatalog([]byte(`{"blocks": []}`), "json")
	assert.True(t, errs.Is(err, errs.CodeInvalidInput))
	_, err = ParseCatalog([]byte(`{"blocks": [{"id": 1, "width": 0, "height": 2}]}`), "json")
	assert.True(t, errs.Is(err, errs.CodeInvalidDimensions))
}

func TestLoadCatalog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blocks.yml")
	require.NoError(t, os.WriteFile(path, []byte("blocks:\n  - {id: 1, width: 50, height: 25, depth: 20, price: 3}\n"), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, c.Blocks, 1)
	assert.InDelta(t, 3, c.Blocks[0].Price, 0)

	_, err = LoadCatalog(filepath.Join(dir, "missing.toml"))
	assert.True(t, errs.Is(err, errs.CodeInvalidInput))
	require.NoError(t, DefaultCatalog().Validate())
}
