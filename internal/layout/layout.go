// Package layout holds the wall geometry produced by an analysis and the
// conversions between pixel and physical coordinates.
package layout

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Kind labels a rectangle. Block-type codes from a catalog are kinds too.
type Kind string

const (
	KindWall      Kind = "wall"
	KindOpening   Kind = "opening"
	KindWindow    Kind = "window"
	KindDoor      Kind = "door"
	KindBlock     Kind = "block"
	KindHalfBlock Kind = "halfblock"
	KindCorner    Kind = "corner"
)

// BlockKind returns the kind for a numeric block-type code.
func BlockKind(code int) Kind { return Kind(strconv.Itoa(code)) }

// IsOpening reports whether k describes a wall aperture.
func (k Kind) IsOpening() bool {
	return k == KindOpening || k == KindWindow || k == KindDoor
}

// Origin names the corner the coordinates are measured from.
type Origin string

const (
	OriginTopLeft    Origin = "top-left"
	OriginBottomLeft Origin = "bottom-left"
)

// Source names how the wall was found.
type Source string

const (
	SourceContour    Source = "contour"
	SourceLine       Source = "line"
	SourceRawContour Source = "raw-contour"
	SourceManual     Source = "manual"
)

// Rectangle is an axis-aligned rectangle. Nested rectangles are relative
// to the wall.
type Rectangle struct {
	X    float64 `json:"x" yaml:"x"`
	Y    float64 `json:"y" yaml:"y"`
	W    float64 `json:"w" yaml:"w"`
	H    float64 `json:"h" yaml:"h"`
	Type Kind    `json:"type" yaml:"type"`
}

// Area returns W*H.
func (r Rectangle) Area() float64 { return r.W * r.H }

// Right returns X+W.
func (r Rectangle) Right() float64 { return r.X + r.W }

// Top returns Y+H.
func (r Rectangle) Top() float64 { return r.Y + r.H }

// Overlaps reports whether r and o share interior area.
func (r Rectangle) Overlaps(o Rectangle) bool {
	return r.X < o.Right() && o.X < r.Right() && r.Y < o.Top() && o.Y < r.Top()
}

// Within reports whether r lies inside [0,w]x[0,h], allowing tol slack.
func (r Rectangle) Within(w, h, tol float64) bool {
	return r.X >= -tol && r.Y >= -tol && r.Right() <= w+tol && r.Top() <= h+tol
}

func (r Rectangle) String() string {
	return fmt.Sprintf("%s(%.2f,%.2f %.2fx%.2f)", r.Type, r.X, r.Y, r.W, r.H)
}

// Dimensions is the wall size in output units.
type Dimensions struct {
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Scale is the pixel-to-unit factor; PixelsPerUnit is nil for pixel output.
type Scale struct {
	PixelsPerUnit *float64 `json:"pixels_per_unit" yaml:"pixels_per_unit"`
}

// Calibrated reports whether s carries a physical scale.
func (s Scale) Calibrated() bool { return s.PixelsPerUnit != nil }

// NewScale returns a calibrated scale.
func NewScale(pixelsPerUnit float64) Scale {
	return Scale{PixelsPerUnit: &pixelsPerUnit}
}

// Layout is the result of one analysis or manual entry.
type Layout struct {
	Wall        Rectangle   `json:"wall" yaml:"wall"`
	Openings    []Rectangle `json:"openings" yaml:"openings"`
	Blocks      []Rectangle `json:"blocks" yaml:"blocks"`
	Dimensions  Dimensions  `json:"dimensions" yaml:"dimensions"`
	Scale       Scale       `json:"scale" yaml:"scale"`
	Origin      Origin      `json:"origin" yaml:"origin"`
	Source      Source      `json:"source" yaml:"source"`
	Approximate bool        `json:"approximate" yaml:"approximate"`
}

// Normalize replaces nil slices with empty ones and syncs Dimensions to
// the wall.
func (l *Layout) Normalize() {
	if l.Openings == nil {
		l.Openings = []Rectangle{}
	}
	if l.Blocks == nil {
		l.Blocks = []Rectangle{}
	}
	l.Dimensions = Dimensions{Width: l.Wall.W, Height: l.Wall.H}
}

// MarshalJSON keeps Openings and Blocks as arrays even when nil.
func (l Layout) MarshalJSON() ([]byte, error) {
	type plain Layout
	l.Normalize()
	return json.Marshal(plain(l))
}

// OpeningArea sums the areas of all openings.
func (l *Layout) OpeningArea() float64 {
	var sum float64
	for _, o := range l.Openings {
		sum += o.Area()
	}
	return sum
}

// WithBlocks returns a copy of l carrying blocks.
func (l *Layout) WithBlocks(blocks []Rectangle) *Layout {
	out := *l
	out.Openings = append([]Rectangle{}, l.Openings...)
	out.Blocks = append([]Rectangle{}, blocks...)
	return &out
}
