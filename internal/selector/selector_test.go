package selector

import (
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/wallplan/internal/detector"
	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/layout"
	"github.com/MeKo-Tech/wallplan/internal/testutil"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rectContour(idx int, r image.Rectangle, parent int, hole bool) detector.Contour {
	return detector.Contour{
		Index:  idx,
		Bounds: r,
		Area:   float64((r.Dx() - 1) * (r.Dy() - 1)),
		Approx: []image.Point{r.Min, {r.Max.X - 1, r.Min.Y}, r.Max.Sub(image.Pt(1, 1)), {r.Min.X, r.Max.Y - 1}},
		Parent: parent,
		Hole:   hole,
	}
}

func detect(t *testing.T, bin *image.Gray) *detector.Features {
	t.Helper()
	f, err := detector.Detect(bin, detector.DefaultConfig())
	require.NoError(t, err)
	return f
}

func drawPlan(cfg testutil.PlanConfig) *image.Gray {
	g := testutil.BinaryRect(cfg.Size, cfg.Wall, cfg.Stroke)
	for _, o := range cfg.Openings {
		testutil.StrokeRect(g, o, cfg.Stroke, color.Gray{Y: 255})
	}
	return g
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"margin", func(c *Config) { c.EdgeMarginPx = -1 }},
		{"area", func(c *Config) { c.MinOpeningAreaFraction = 1 }},
		{"vertices", func(c *Config) { c.MaxOpeningVertices = 3 }},
		{"wall fraction", func(c *Config) { c.MaxOpeningWallFraction = 0 }},
		{"baseline", func(c *Config) { c.BaselineHeightFraction = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
			_, err := Select(&detector.Features{}, image.Rect(0, 0, 10, 10), cfg)
			assert.True(t, errs.Is(err, errs.CodeInvalidInput))
		})
	}
}

func TestSelect_Plan(t *testing.T) {
	plan := testutil.DefaultPlanConfig()
	bin := drawPlan(plan)
	sel, err := Select(detect(t, bin), bin.Bounds(), DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, layout.SourceContour, sel.Source)
	assert.False(t, sel.Approximate)
	assert.Equal(t, plan.Wall, sel.Wall)
	assert.Equal(t, 0, sel.WallContour)
	assert.Equal(t, plan.Openings, sel.Openings)
}

func TestSelect_SingleRectangleHasNoOpenings(t *testing.T) {
	r := image.Rect(30, 20, 290, 200)
	bin := testutil.BinaryRect(testutil.SmallSize, r, 0)
	sel, err := Select(detect(t, bin), bin.Bounds(), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, r, sel.Wall)
	assert.NotNil(t, sel.Openings)
	assert.Empty(t, sel.Openings)
}

func TestSelect_BlankRaster(t *testing.T) {
	bin := image.NewGray(image.Rect(0, 0, 120, 90))
	sel, err := Select(detect(t, bin), bin.Bounds(), DefaultConfig())
	require.Error(t, err)
	assert.Nil(t, sel)
	assert.True(t, errs.Is(err, errs.CodeNoStructureDetected))
	assert.Equal(t, errs.CategoryDetection, errs.CategoryOf(err))

	_, err = Select(nil, bin.Bounds(), DefaultConfig())
	assert.True(t, errs.Is(err, errs.CodeInvalidInput))
}

func TestSelect_WallTieFirstWins(t *testing.T) {
	a := rectContour(0, image.Rect(0, 0, 50, 50), detector.NoParent, false)
	b := rectContour(1, image.Rect(100, 0, 150, 50), detector.NoParent, false)
	f := &detector.Features{Width: 200, Height: 100, External: []detector.Contour{a, b}, Hierarchy: []detector.Contour{a, b}}

	sel, err := Select(f, image.Rect(0, 0, 200, 100), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, a.Bounds, sel.Wall)

	b.Area++
	f.External[1] = b
	sel, err = Select(f, image.Rect(0, 0, 200, 100), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, b.Bounds, sel.Wall)
}

func TestSelect_OpeningFilters(t *testing.T) {
	wall := rectContour(0, image.Rect(100, 100, 900, 500), detector.NoParent, false)
	good := rectContour(1, image.Rect(200, 200, 300, 300), 0, false)
	touching := rectContour(2, image.Rect(101, 200, 180, 300), 0, false)
	tiny := rectContour(3, image.Rect(400, 200, 410, 210), 0, false)
	round := rectContour(4, image.Rect(500, 200, 600, 300), 0, false)
	round.Approx = append(round.Approx, image.Pt(1, 1), image.Pt(2, 2), image.Pt(3, 3))
	nested := rectContour(5, image.Rect(210, 210, 290, 290), 1, true)
	huge := rectContour(6, image.Rect(103, 103, 897, 497), 0, true)
	lower := rectContour(7, image.Rect(150, 350, 250, 450), 0, false)
	margin := rectContour(8, image.Rect(700, 102, 800, 300), 0, false)

	hier := []detector.Contour{wall, good, touching, tiny, round, nested, huge, lower, margin}
	f := &detector.Features{Width: 1000, Height: 600, External: hier[:1], Hierarchy: hier}

	sel, err := Select(f, image.Rect(0, 0, 1000, 600), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, []image.Rectangle{margin.Bounds, good.Bounds, lower.Bounds}, sel.Openings)
}

func TestSelect_LineFallback(t *testing.T) {
	f := &detector.Features{
		Width: 400, Height: 300,
		Horizontal: []detector.Segment{
			{X1: 10, Y1: 100, X2: 60, Y2: 100},
			{X1: 300, Y1: 250, X2: 99, Y2: 252},
			{X1: 0, Y1: 20, X2: 201, Y2: 20},
		},
	}
	sel, err := Select(f, image.Rect(0, 0, 400, 300), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, layout.SourceLine, sel.Source)
	assert.True(t, sel.Approximate)
	assert.Equal(t, -1, sel.WallContour)
	assert.Empty(t, sel.Openings)
	// 202 px wide, 20 px high, bottom edge on the lower end point
	assert.Equal(t, image.Rect(99, 233, 301, 253), sel.Wall)
}

func TestSelect_LineFallbackClampsAtTop(t *testing.T) {
	f := &detector.Features{Width: 400, Height: 300, Horizontal: []detector.Segment{{X1: 0, Y1: 5, X2: 399, Y2: 5}}}
	sel, err := Select(f, image.Rect(0, 0, 400, 300), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 400, 6), sel.Wall)
}

func TestSelect_LineFromRaster(t *testing.T) {
	bin := testutil.BinaryRect(testutil.MediumSize, image.Rect(40, 300, 600, 302), 0)
	sel, err := Select(detect(t, bin), bin.Bounds(), DefaultConfig())
	require.NoError(t, err)

	// The line's contour area is below the threshold, so the baseline wins.
	assert.Equal(t, layout.SourceLine, sel.Source)
	assert.True(t, sel.Approximate)
	assert.InDelta(t, 560, sel.Wall.Dx(), 12)
	assert.InDelta(t, 56, sel.Wall.Dy(), 2)
	assert.InDelta(t, 302, sel.Wall.Max.Y, 4)
}

func TestSelect_RawFallback(t *testing.T) {
	small := rectContour(0, image.Rect(10, 10, 14, 14), detector.NoParent, false)
	bigger := rectContour(1, image.Rect(50, 10, 60, 14), detector.NoParent, false)
	hole := rectContour(2, image.Rect(0, 0, 99, 99), 1, true)
	f := &detector.Features{Width: 100, Height: 100, Hierarchy: []detector.Contour{small, bigger, hole}}

	sel, err := Select(f, image.Rect(0, 0, 100, 100), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, layout.SourceRawContour, sel.Source)
	assert.Equal(t, bigger.Bounds, sel.Wall)
	assert.Equal(t, 1, sel.WallContour)
	assert.Empty(t, sel.Openings)
}

func TestSelect_RawFallbackBoxTieBreak(t *testing.T) {
	// A one-pixel-high line has zero area, so the box decides.
	a := detector.Contour{Index: 0, Bounds: image.Rect(0, 0, 5, 1), Parent: detector.NoParent}
	b := detector.Contour{Index: 1, Bounds: image.Rect(0, 5, 9, 6), Parent: detector.NoParent}
	c := detector.Contour{Index: 2, Bounds: image.Rect(0, 9, 9, 10), Parent: detector.NoParent}
	f := &detector.Features{Width: 10, Height: 10, Hierarchy: []detector.Contour{a, b, c}}
	sel, err := Select(f, image.Rect(0, 0, 10, 10), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, b.Bounds, sel.Wall)
}

func TestSelect_SpeckRasterNeverFails(t *testing.T) {
	bin := image.NewGray(image.Rect(0, 0, 50, 50))
	bin.Pix[25*50+25] = 255
	sel, err := Select(detect(t, bin), bin.Bounds(), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(25, 25, 26, 26), sel.Wall)
	assert.False(t, sel.Wall.Empty())
}

// TestSelect_OpeningsInsideWall checks that every selected opening keeps the
// edge margin to the wall box for randomly placed plans.
func TestSelect_OpeningsInsideWall(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	properties.Property("openings keep the edge margin", prop.ForAll(
		func(wx, wy, ox, oy, ow, oh int) bool {
			plan := testutil.PlanConfig{
				Size:     testutil.MediumSize,
				Wall:     image.Rect(wx, wy, wx+400, wy+260),
				Openings: []image.Rectangle{image.Rect(wx+ox, wy+oy, wx+ox+ow, wy+oy+oh)},
				Stroke:   3,
			}
			bin := drawPlan(plan)
			f, err := detector.Detect(bin, detector.DefaultConfig())
			if err != nil {
				return false
			}
			sel, err := Select(f, bin.Bounds(), DefaultConfig())
			if err != nil {
				return false
			}
			inner := sel.Wall.Inset(DefaultEdgeMarginPx)
			for _, o := range sel.Openings {
				if !o.In(inner) {
					return false
				}
			}
			return sel.Wall == plan.Wall
		},
		gen.IntRange(0, 200),
		gen.IntRange(0, 180),
		gen.IntRange(0, 300),
		gen.IntRange(0, 200),
		gen.IntRange(20, 100),
		gen.IntRange(20, 60),
	))

	properties.TestingRun(t)
}
