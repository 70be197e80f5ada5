package detector

import (
	"image"

	"github.com/MeKo-Tech/wallplan/internal/utils"
)

// NoParent marks a contour that is not enclosed by any other contour.
const NoParent = -1

// UnknownParent marks a nested contour whose enclosing contour the backend
// could not name.
const UnknownParent = -2

// Contour is a closed boundary in a binary raster.
type Contour struct {
	Index     int             `json:"index"`  // position in Features.Hierarchy
	Points    []image.Point   `json:"-"`      // boundary pixels in tracing order
	Approx    []image.Point   `json:"approx"` // Douglas-Peucker polygon
	Bounds    image.Rectangle `json:"bounds"` // pixel box, exclusive max
	Area      float64         `json:"area"`   // shoelace area over pixel centres
	Perimeter float64         `json:"perimeter"`
	Hole      bool            `json:"hole"`
	Parent    int             `json:"parent"`
}

// IsOuter reports whether c is an outer boundary that no other contour encloses.
func (c *Contour) IsOuter() bool {
	return !c.Hole && c.Parent == NoParent
}

// finalize derives the measurements of c from its boundary points.
func (c *Contour) finalize(epsilonFraction float64) {
	fp := utils.FromImagePoints(c.Points)
	c.Area = utils.PolygonArea(fp)
	c.Perimeter = utils.Perimeter(fp)
	c.Approx = utils.ToImagePoints(utils.SimplifyClosed(fp, epsilonFraction*c.Perimeter))
	c.Bounds = utils.PixelBounds(c.Points)
}

// findContours returns the outer boundary of every foreground component and
// the boundary of every enclosed background region (hole), ordered by the
// raster position of their first pixel. Parents link holes to the
// foreground component around them and nested foreground to its hole.
func findContours(bin *image.Gray) []Contour {
	b := bin.Bounds()
	w, h := b.Dx(), b.Dy()
	labels, comps := labelComponents(bin)

	contourOf := make([]int, len(comps))
	owner := make([]int, 0, len(comps))
	var out []Contour
	for ci, c := range comps {
		if !c.fg && c.border {
			contourOf[ci] = NoParent
			continue
		}
		contourOf[ci] = len(out)
		owner = append(owner, ci)
		out = append(out, Contour{
			Index:  len(out),
			Points: traceBoundary(labels, w, h, int32(ci+1), c.seed), //nolint:gosec // G115: bounded by pixel count
			Hole:   !c.fg,
		})
	}

	for k := range out {
		seed := comps[owner[k]].seed
		if seed.X == 0 {
			out[k].Parent = NoParent
			continue
		}
		// The pixel left of a seed always belongs to the surrounding region.
		left := int(labels[seed.Y*w+seed.X-1]) - 1
		out[k].Parent = contourOf[left]
	}
	return out
}

// Moore neighbourhood in clockwise order (y grows downwards): E, SE, S, SW, W, NW, N, NE.
var moore = [8]image.Point{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}

const mooreWest = 4

func mooreIndex(d image.Point) int {
	for i, m := range moore {
		if m == d {
			return i
		}
	}
	return mooreWest
}

// traceBoundary follows the outer boundary of the component with the given
// label using Moore-neighbour tracing, starting at its seed. Tracing stops
// when the seed is about to be left towards the first boundary pixel again.
// Points on straight runs are collapsed to the run end points.
func traceBoundary(labels []int32, w, h int, label int32, seed image.Point) []image.Point {
	in := func(p image.Point) bool {
		return p.X >= 0 && p.Y >= 0 && p.X < w && p.Y < h && labels[p.Y*w+p.X] == label
	}
	// next scans clockwise from the backtrack direction and returns the next
	// boundary pixel together with the backtrack direction seen from it.
	next := func(c image.Point, back int) (image.Point, int, bool) {
		for k := 1; k <= 8; k++ {
			i := (back + k) % 8
			p := c.Add(moore[i])
			if in(p) {
				prev := c.Add(moore[(back+k-1)%8])
				return p, mooreIndex(prev.Sub(p)), true
			}
		}
		return c, back, false
	}

	pts := []image.Point{seed}
	first, back, ok := next(seed, mooreWest)
	if !ok {
		return pts
	}

	add := func(p image.Point) {
		n := len(pts)
		if n >= 2 {
			a, b := pts[n-2], pts[n-1]
			v1, v2 := b.Sub(a), p.Sub(b)
			// Drop b when a, b and p continue in the same direction.
			if v1.X*v2.Y-v1.Y*v2.X == 0 && v1.X*v2.X+v1.Y*v2.Y > 0 {
				pts = pts[:n-1]
			}
		}
		pts = append(pts, p)
	}

	cur := first
	limit := 4*w*h + 8
	for range limit {
		n, nb, _ := next(cur, back)
		if cur == seed && n == first {
			break
		}
		add(cur)
		cur, back = n, nb
	}

	// The closing run may end in, or continue straight through, the seed.
	if n := len(pts); n >= 3 {
		a, b, c := pts[n-2], pts[n-1], pts[0]
		v1, v2 := b.Sub(a), c.Sub(b)
		if v1.X*v2.Y-v1.Y*v2.X == 0 && v1.X*v2.X+v1.Y*v2.Y > 0 {
			pts = pts[:n-1]
		}
	}
	if n := len(pts); n >= 3 {
		a, b, c := pts[n-1], pts[0], pts[1]
		v1, v2 := b.Sub(a), c.Sub(b)
		if v1.X*v2.Y-v1.Y*v2.X == 0 && v1.X*v2.X+v1.Y*v2.Y > 0 {
			pts = pts[1:]
		}
	}
	return pts
}
