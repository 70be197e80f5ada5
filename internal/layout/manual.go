package layout

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"gopkg.in/yaml.v3"
)

// ManualInput is a wall described by hand in physical units, origin at the
// bottom-left corner.
type ManualInput struct {
	Width    float64     `json:"width" yaml:"width"`
	Height   float64     `json:"height" yaml:"height"`
	Openings []Rectangle `json:"openings" yaml:"openings"`
	Blocks   []Rectangle `json:"blocks,omitempty" yaml:"blocks,omitempty"`
}

// FromManual validates in and builds its layout with an identity scale.
func FromManual(in ManualInput) (*Layout, error) {
	if !positive(in.Width) || !positive(in.Height) {
		return nil, errs.New(errs.CodeInvalidDimensions,
			"wall width and height must be positive, got %g x %g", in.Width, in.Height)
	}

	openings := make([]Rectangle, len(in.Openings))
	for i, o := range in.Openings {
		o.Type = Kind(strings.ToLower(strings.TrimSpace(string(o.Type))))
		if o.Type == "" {
			o.Type = KindOpening
		}
		if !o.Type.IsOpening() {
			return nil, errs.New(errs.CodeInvalidInput,
				"opening %d: type must be window, door or opening, got %q", i, o.Type)
		}
		if err := checkRect(o, i, "opening", in.Width, in.Height); err != nil {
			return nil, err
		}
		openings[i] = o
	}

	blocks := make([]Rectangle, len(in.Blocks))
	for i, b := range in.Blocks {
		if b.Type == "" {
			b.Type = KindBlock
		}
		if err := checkRect(b, i, "block", in.Width, in.Height); err != nil {
			return nil, err
		}
		blocks[i] = b
	}

	l := &Layout{
		Wall:     Rectangle{X: 0, Y: 0, W: in.Width, H: in.Height, Type: KindWall},
		Openings: openings,
		Blocks:   blocks,
		Scale:    NewScale(1.0),
		Origin:   OriginBottomLeft,
		Source:   SourceManual,
	}
	l.Normalize()
	return l, nil
}

// checkRect reports non-positive sizes and the first side r crosses.
func checkRect(r Rectangle, index int, kind string, width, height float64) error {
	if !positive(r.W) || !positive(r.H) {
		return errs.New(errs.CodeInvalidDimensions,
			"%s %d: width and height must be positive, got %g x %g", kind, index, r.W, r.H)
	}
	switch {
	case r.X < 0:
		return &errs.OutOfBoundsError{Index: index, Side: "left", Excess: -r.X, Kind: kind}
	case r.Y < 0:
		return &errs.OutOfBoundsError{Index: index, Side: "bottom", Excess: -r.Y, Kind: kind}
	case r.Right() > width:
		return &errs.OutOfBoundsError{Index: index, Side: "right", Excess: r.Right() - width, Kind: kind}
	case r.Top() > height:
		return &errs.OutOfBoundsError{Index: index, Side: "top", Excess: r.Top() - height, Kind: kind}
	}
	return nil
}

// ParseRect parses "x,y,w,h" with an optional ",type" suffix.
func ParseRect(s string) (Rectangle, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 && len(parts) != 5 {
		return Rectangle{}, errs.New(errs.CodeInvalidInput, "expected x,y,w,h[,type], got %q", s)
	}
	var vals [4]float64
	for i := range vals {
		v, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			return Rectangle{}, errs.Wrap(errs.CodeInvalidInput, err, "field %d of %q", i+1, s)
		}
		vals[i] = v
	}
	r := Rectangle{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}
	if len(parts) == 5 {
		r.Type = Kind(strings.ToLower(strings.TrimSpace(parts[4])))
	}
	return r, nil
}

// DecodeManualInput parses a manual input document. JSON is accepted as a
// subset of YAML.
func DecodeManualInput(data []byte) (ManualInput, error) {
	var in ManualInput
	if err := yaml.Unmarshal(data, &in); err != nil {
		return in, errs.Wrap(errs.CodeInvalidInput, err, "cannot parse manual input")
	}
	return in, nil
}

// DecodeLayout parses a layout document written by the CLI or server.
func DecodeLayout(data []byte) (*Layout, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, errs.Wrap(errs.CodeInvalidInput, err, "cannot parse layout")
	}
	if !positive(l.Wall.W) || !positive(l.Wall.H) {
		return nil, errs.New(errs.CodeInvalidDimensions, "layout wall must have positive size")
	}
	if l.Wall.Type == "" {
		l.Wall.Type = KindWall
	}
	l.Normalize()
	return &l, nil
}

// Summary is a one-line description of l.
func (l *Layout) Summary() string {
	unit := "px"
	if l.Scale.Calibrated() {
		unit = "units"
	}
	return fmt.Sprintf("wall %.2f x %.2f %s, %d openings, %d blocks (%s)",
		l.Wall.W, l.Wall.H, unit, len(l.Openings), len(l.Blocks), l.Source)
}
