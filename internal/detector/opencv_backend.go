//go:build gocv

package detector

import (
	"fmt"
	"image"
	"math"
	"slices"

	"gocv.io/x/gocv"
)

func init() {
	registerBackend(BackendOpenCV, func() Backend { return opencvBackend{} })
}

// opencvBackend delegates the raster primitives to OpenCV. Its contour
// hierarchy only distinguishes top-level outer boundaries from everything
// else: nested contours carry UnknownParent and are never marked as holes.
type opencvBackend struct{}

func (opencvBackend) Name() string { return BackendOpenCV }

func (opencvBackend) Contours(bin *image.Gray) ([]Contour, error) {
	mat, err := gocv.ImageGrayToMatGray(bin)
	if err != nil {
		return nil, fmt.Errorf("convert raster: %w", err)
	}
	defer mat.Close()

	external := gocv.FindContours(mat, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer external.Close()
	all := gocv.FindContours(mat, gocv.RetrievalList, gocv.ChainApproxNone)
	defer all.Close()

	outer := make(map[image.Point]bool, external.Size())
	for _, pts := range external.ToPoints() {
		if len(pts) > 0 {
			outer[topLeft(pts)] = true
		}
	}

	out := make([]Contour, 0, all.Size())
	for _, pts := range all.ToPoints() {
		if len(pts) == 0 {
			continue
		}
		c := Contour{Points: pts, Parent: UnknownParent}
		if outer[topLeft(pts)] {
			c.Parent = NoParent
		}
		out = append(out, c)
	}
	// Match the native ordering: by the raster position of the first pixel.
	slices.SortStableFunc(out, func(a, b Contour) int {
		pa, pb := topLeft(a.Points), topLeft(b.Points)
		if pa.Y != pb.Y {
			return pa.Y - pb.Y
		}
		return pa.X - pb.X
	})
	return out, nil
}

func (opencvBackend) Edges(bin *image.Gray, low, high float64) (*image.Gray, error) {
	mat, err := gocv.ImageGrayToMatGray(bin)
	if err != nil {
		return nil, fmt.Errorf("convert raster: %w", err)
	}
	defer mat.Close()

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(mat, &edges, float32(low), float32(high))

	img, err := edges.ToImage()
	if err != nil {
		return nil, fmt.Errorf("convert edges: %w", err)
	}
	g, ok := img.(*image.Gray)
	if !ok {
		return nil, fmt.Errorf("unexpected edge image type %T", img)
	}
	return g, nil
}

func (opencvBackend) Lines(edges *image.Gray, p HoughParams) ([]Segment, error) {
	mat, err := gocv.ImageGrayToMatGray(edges)
	if err != nil {
		return nil, fmt.Errorf("convert edges: %w", err)
	}
	defer mat.Close()

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLinesPWithParams(mat, &lines,
		float32(p.Rho), float32(p.ThetaDeg*math.Pi/180), p.Threshold,
		float32(p.MinLineLength), float32(p.MaxLineGap))

	out := make([]Segment, 0, lines.Rows())
	for i := range lines.Rows() {
		v := lines.GetVeciAt(i, 0)
		out = append(out, Segment{X1: int(v[0]), Y1: int(v[1]), X2: int(v[2]), Y2: int(v[3])})
	}
	return out, nil
}

// topLeft returns the first point of pts in raster order.
func topLeft(pts []image.Point) image.Point {
	best := pts[0]
	for _, p := range pts[1:] {
		if p.Y < best.Y || (p.Y == best.Y && p.X < best.X) {
			best = p
		}
	}
	return best
}
