package layout

import (
	"image"
	"math"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/utils"
	"gonum.org/v1/gonum/mat"
)

// Calibration is the known physical size of the wall.
type Calibration struct {
	Width  float64 `json:"width" yaml:"width" mapstructure:"width"`
	Height float64 `json:"height" yaml:"height" mapstructure:"height"`
}

// PixelGeometry is a wall with its openings in image coordinates.
type PixelGeometry struct {
	Wall        image.Rectangle
	Openings    []image.Rectangle
	Source      Source
	Approximate bool
}

// Calibrate derives pixels per unit from the wall box and its physical size
// by averaging the horizontal and vertical ratios.
func Calibrate(wallPx image.Rectangle, width, height float64) (Scale, error) {
	if !positive(width) || !positive(height) {
		return Scale{}, errs.New(errs.CodeInvalidDimensions,
			"calibration width and height must be positive, got %g x %g", width, height)
	}
	if wallPx.Empty() {
		return Scale{}, errs.New(errs.CodeInvalidInput, "wall box is empty")
	}
	sx := float64(wallPx.Dx()) / width
	sy := float64(wallPx.Dy()) / height
	return NewScale((sx + sy) / 2), nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Mapper converts pixel coordinates to layout coordinates relative to the
// wall. With a scale the output is in physical units with the origin at the
// wall's bottom-left corner; without one it stays in pixels with the origin
// at the wall's top-left corner.
type Mapper struct {
	wall    image.Rectangle
	scale   Scale
	forward *mat.Dense
	inverse *mat.Dense
}

// NewMapper builds the mapper for a wall box. A nil calibration yields
// pixel output.
func NewMapper(wall image.Rectangle, cal *Calibration) (*Mapper, error) {
	if wall.Empty() {
		return nil, errs.New(errs.CodeInvalidInput, "wall box is empty")
	}
	m := &Mapper{wall: wall}
	wx, wy := float64(wall.Min.X), float64(wall.Min.Y)

	if cal == nil {
		m.forward = mat.NewDense(3, 3, []float64{
			1, 0, -wx,
			0, 1, -wy,
			0, 0, 1,
		})
	} else {
		scale, err := Calibrate(wall, cal.Width, cal.Height)
		if err != nil {
			return nil, err
		}
		m.scale = scale
		s := *scale.PixelsPerUnit
		wh := float64(wall.Dy())
		m.forward = mat.NewDense(3, 3, []float64{
			1 / s, 0, -wx / s,
			0, -1 / s, (wy + wh) / s,
			0, 0, 1,
		})
	}

	m.inverse = mat.NewDense(3, 3, nil)
	if err := m.inverse.Inverse(m.forward); err != nil {
		return nil, errs.Wrap(errs.CodeInternal, err, "coordinate transform is singular")
	}
	return m, nil
}

// Scale returns the mapper's scale.
func (m *Mapper) Scale() Scale { return m.scale }

// Origin returns the output origin convention.
func (m *Mapper) Origin() Origin {
	if m.scale.Calibrated() {
		return OriginBottomLeft
	}
	return OriginTopLeft
}

func apply(t *mat.Dense, x, y float64) (float64, float64) {
	var out mat.VecDense
	out.MulVec(t, mat.NewVecDense(3, []float64{x, y, 1}))
	return out.AtVec(0), out.AtVec(1)
}

// MapPoint converts a pixel position.
func (m *Mapper) MapPoint(x, y float64) (float64, float64) {
	return apply(m.forward, x, y)
}

// UnmapPoint converts a layout position back to pixels.
func (m *Mapper) UnmapPoint(x, y float64) (float64, float64) {
	return apply(m.inverse, x, y)
}

// MapRect converts a pixel box to a layout rectangle of the given kind.
func (m *Mapper) MapRect(r image.Rectangle, kind Kind) Rectangle {
	return m.mapBox(utils.NewBox(float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y)), kind)
}

func (m *Mapper) mapBox(b utils.Box, kind Kind) Rectangle {
	x0, y0 := m.MapPoint(b.MinX, b.MinY)
	x1, y1 := m.MapPoint(b.MaxX, b.MaxY)
	out := utils.NewBox(x0, y0, x1, y1)
	return Rectangle{X: out.MinX, Y: out.MinY, W: out.Width(), H: out.Height(), Type: kind}
}

// Unmap converts a layout rectangle back to a pixel box.
func (m *Mapper) Unmap(r Rectangle) utils.Box {
	x0, y0 := m.UnmapPoint(r.X, r.Y)
	x1, y1 := m.UnmapPoint(r.Right(), r.Top())
	return utils.NewBox(x0, y0, x1, y1)
}

// UnmapRect is Unmap rounded to whole pixels.
func (m *Mapper) UnmapRect(r Rectangle) image.Rectangle {
	b := m.Unmap(r)
	return image.Rect(
		int(math.Round(b.MinX)), int(math.Round(b.MinY)),
		int(math.Round(b.MaxX)), int(math.Round(b.MaxY)))
}

// Map converts a pixel selection into a layout.
func (m *Mapper) Map(g PixelGeometry) *Layout {
	wall := m.MapRect(g.Wall, KindWall)
	// The wall corner is the origin in both conventions.
	wall.X, wall.Y = 0, 0
	l := &Layout{
		Wall:        wall,
		Openings:    make([]Rectangle, 0, len(g.Openings)),
		Blocks:      []Rectangle{},
		Scale:       m.scale,
		Origin:      m.Origin(),
		Source:      g.Source,
		Approximate: g.Approximate,
	}
	for _, o := range g.Openings {
		l.Openings = append(l.Openings, m.MapRect(o, KindOpening))
	}
	l.Normalize()
	return l
}

// MapSelection is NewMapper followed by Map.
func MapSelection(g PixelGeometry, cal *Calibration) (*Layout, error) {
	m, err := NewMapper(g.Wall, cal)
	if err != nil {
		return nil, err
	}
	return m.Map(g), nil
}
