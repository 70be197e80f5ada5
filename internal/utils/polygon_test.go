package utils

import (
	"image"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func rectRing(x0, y0, x1, y1 int) []Point {
	var pts []Point
	for x := x0; x < x1; x++ {
		pts = append(pts, Point{X: float64(x), Y: float64(y0)})
	}
	for y := y0; y < y1; y++ {
		pts = append(pts, Point{X: float64(x1), Y: float64(y)})
	}
	for x := x1; x > x0; x-- {
		pts = append(pts, Point{X: float64(x), Y: float64(y1)})
	}
	for y := y1; y > y0; y-- {
		pts = append(pts, Point{X: float64(x0), Y: float64(y)})
	}
	return pts
}

func TestSimplifyClosed_RectangleHasFourVertices(t *testing.T) {
	ring := rectRing(10, 20, 110, 70)
	approx := SimplifyClosed(ring, 0.02*Perimeter(ring))
	assert.Len(t, approx, 4)
	assert.InDelta(t, 100*50, PolygonArea(approx), 1e-9)
}

func TestSimplifyClosed_SmallInputsUnchanged(t *testing.T) {
	pts := []Point{{0, 0}, {1, 0}, {1, 1}}
	assert.Equal(t, pts, SimplifyClosed(pts, 5))
}

func TestPolygonAreaAndPerimeter(t *testing.T) {
	square := []Point{{0, 0}, {4, 0}, {4, 4}, {0, 4}}
	assert.InDelta(t, 16.0, PolygonArea(square), 1e-9)
	assert.InDelta(t, 16.0, Perimeter(square), 1e-9)
	assert.Zero(t, PolygonArea(square[:2]))
}

func TestPixelBounds(t *testing.T) {
	r := PixelBounds([]image.Point{{3, 4}})
	assert.Equal(t, image.Rect(3, 4, 4, 5), r)
	r = PixelBounds([]image.Point{{3, 4}, {10, 2}})
	assert.Equal(t, image.Rect(3, 2, 11, 5), r)
	assert.True(t, PixelBounds(nil).Empty())
}

func TestSimplifyClosed_RectanglesProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("axis aligned rectangles simplify to four corners", prop.ForAll(
		func(x, y, w, h int) bool {
			ring := rectRing(x, y, x+w, y+h)
			approx := SimplifyClosed(ring, 0.02*Perimeter(ring))
			box := BoundingBox(approx)
			return len(approx) == 4 &&
				box.MinX == float64(x) && box.MinY == float64(y) &&
				box.Width() == float64(w) && box.Height() == float64(h)
		},
		gen.IntRange(0, 100),
		gen.IntRange(0, 100),
		gen.IntRange(10, 200),
		gen.IntRange(10, 200),
	))

	properties.TestingRun(t)
}
