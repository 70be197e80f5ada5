package utils

import "math"

// SimplifyPolygon reduces the number of points in an open polyline using the
// Douglas–Peucker algorithm with the given tolerance epsilon. Both endpoints
// are always kept.
func SimplifyPolygon(pts []Point, epsilon float64) []Point {
	if len(pts) <= 2 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}
	keep := make([]bool, len(pts))
	dpSimplify(pts, 0, len(pts)-1, epsilon, keep)
	keep[0] = true
	keep[len(pts)-1] = true
	out := make([]Point, 0, len(pts))
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

// SimplifyClosed approximates a closed contour. The ring is split at the
// point farthest from the first vertex and both halves are simplified
// independently, so the result does not depend on an arbitrary seam.
func SimplifyClosed(pts []Point, epsilon float64) []Point {
	n := len(pts)
	if n <= 3 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}
	far, farDist := 0, -1.0
	for i := 1; i < n; i++ {
		d := math.Hypot(pts[i].X-pts[0].X, pts[i].Y-pts[0].Y)
		if d > farDist {
			far, farDist = i, d
		}
	}
	if farDist <= epsilon {
		return []Point{pts[0]}
	}

	first := SimplifyPolygon(pts[:far+1], epsilon)
	second := make([]Point, 0, n-far+1)
	second = append(second, pts[far:]...)
	second = append(second, pts[0])
	second = SimplifyPolygon(second, epsilon)

	out := make([]Point, 0, len(first)+len(second))
	out = append(out, first...)
	// Drop the shared split vertex and the closing copy of pts[0].
	out = append(out, second[1:len(second)-1]...)
	return out
}

func dpSimplify(pts []Point, start, end int, eps float64, keep []bool) {
	if end <= start+1 {
		return
	}
	maxDist := -1.0
	index := -1
	a := pts[start]
	b := pts[end]
	for i := start + 1; i < end; i++ {
		d := perpendicularDistance(pts[i], a, b)
		if d > maxDist {
			maxDist = d
			index = i
		}
	}
	if maxDist > eps {
		dpSimplify(pts, start, index, eps, keep)
		keep[index] = true
		dpSimplify(pts, index, end, eps, keep)
	}
}

func perpendicularDistance(p, a, b Point) float64 {
	vx, vy := b.X-a.X, b.Y-a.Y
	if vx == 0 && vy == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	num := math.Abs((p.X-a.X)*vy - (p.Y-a.Y)*vx)
	return num / math.Hypot(vx, vy)
}

// PolygonArea returns the absolute shoelace area of a closed polygon.
func PolygonArea(pts []Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var s float64
	for i := range pts {
		j := (i + 1) % len(pts)
		s += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(s) / 2
}

// Perimeter returns the length of the closed polygon through pts.
func Perimeter(pts []Point) float64 {
	if len(pts) < 2 {
		return 0
	}
	var l float64
	for i := range pts {
		j := (i + 1) % len(pts)
		l += math.Hypot(pts[j].X-pts[i].X, pts[j].Y-pts[i].Y)
	}
	return l
}
