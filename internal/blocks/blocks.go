// Package blocks partitions a wall layout into masonry courses.
package blocks

import (
	"log/slog"
	"math"
	"slices"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/layout"
)

// Default block size in layout units (centimetres for calibrated layouts).
const (
	DefaultBlockLength  = 50.0
	DefaultCourseHeight = 25.0
	// Pieces narrower than this are dropped as slivers.
	DefaultMinPiece = 1.0
)

const eps = 1e-9

// Spec describes the block grid.
type Spec struct {
	BlockLength  float64 `mapstructure:"block_length" yaml:"block_length" json:"block_length"`
	CourseHeight float64 `mapstructure:"course_height" yaml:"course_height" json:"course_height"`
	RunningBond  bool    `mapstructure:"running_bond" yaml:"running_bond" json:"running_bond"`
	MinPiece     float64 `mapstructure:"min_piece" yaml:"min_piece" json:"min_piece"`
	Type         string  `mapstructure:"type" yaml:"type" json:"type"` // kind for full blocks, "block" when empty
}

// DefaultSpec returns a running bond of 50x25 blocks.
func DefaultSpec() Spec {
	return Spec{
		BlockLength:  DefaultBlockLength,
		CourseHeight: DefaultCourseHeight,
		RunningBond:  true,
		MinPiece:     DefaultMinPiece,
	}
}

// Validate reports an unusable grid.
func (s Spec) Validate() error {
	if s.BlockLength <= 0 || s.CourseHeight <= 0 {
		return errs.New(errs.CodeInvalidDimensions,
			"block length and course height must be positive, got %g x %g", s.BlockLength, s.CourseHeight)
	}
	if s.MinPiece < 0 || s.MinPiece >= s.BlockLength {
		return errs.New(errs.CodeInvalidDimensions, "min piece must be in [0, block length)")
	}
	return nil
}

type span struct{ lo, hi float64 }

// Partition fills the wall of l with courses of blocks. Odd courses are
// shifted by half a block when RunningBond is set. Blocks are cut around
// openings and never leave the wall.
func Partition(l *layout.Layout, spec Spec) ([]layout.Rectangle, error) {
	if l == nil {
		return nil, errs.New(errs.CodeInvalidInput, "no layout to partition")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	width, height := l.Wall.W, l.Wall.H
	if width <= 0 || height <= 0 {
		return nil, errs.New(errs.CodeInvalidDimensions, "wall must have positive size")
	}
	full := layout.KindBlock
	if spec.Type != "" {
		full = layout.Kind(spec.Type)
	}

	out := []layout.Rectangle{}
	courses := int(math.Ceil(height/spec.CourseHeight - eps))
	for c := range courses {
		y0 := float64(c) * spec.CourseHeight
		y1 := math.Min(y0+spec.CourseHeight, height)
		offset := 0.0
		if spec.RunningBond && c%2 == 1 {
			offset = spec.BlockLength / 2
		}
		cells := courseCells(width, spec.BlockLength, offset)

		for _, band := range bands(y0, y1, l.Openings) {
			blocked := blockedSpans(band, l.Openings)
			for _, cell := range cells {
				for _, piece := range subtract(cell, blocked) {
					if piece.hi-piece.lo < spec.MinPiece-eps {
						continue
					}
					kind := full
					short := piece.hi-piece.lo < spec.BlockLength-eps
					atEnd := piece.lo <= eps || piece.hi >= width-eps
					switch {
					case short && offset > 0 && atEnd:
						kind = layout.KindCorner
					case short || band.hi-band.lo < spec.CourseHeight-eps:
						kind = layout.KindHalfBlock
					}
					out = append(out, layout.Rectangle{
						X: piece.lo, Y: band.lo, W: piece.hi - piece.lo, H: band.hi - band.lo, Type: kind,
					})
				}
			}
		}
	}
	slog.Debug("Partitioned wall", "blocks", len(out), "courses", courses)
	return out, nil
}

// courseCells splits [0,width] into block-length cells, the first one
// shortened by offset.
func courseCells(width, length, offset float64) []span {
	var cells []span
	x := 0.0
	if offset > 0 {
		cells = append(cells, span{0, math.Min(offset, width)})
		x = offset
	}
	for x < width-eps {
		cells = append(cells, span{x, math.Min(x+length, width)})
		x += length
	}
	return cells
}

// bands cuts a course at every opening edge that falls inside it.
func bands(y0, y1 float64, openings []layout.Rectangle) []span {
	cuts := []float64{y0, y1}
	for _, o := range openings {
		for _, y := range []float64{o.Y, o.Top()} {
			if y > y0+eps && y < y1-eps {
				cuts = append(cuts, y)
			}
		}
	}
	slices.Sort(cuts)
	cuts = slices.Compact(cuts)
	out := make([]span, 0, len(cuts)-1)
	for i := 1; i < len(cuts); i++ {
		out = append(out, span{cuts[i-1], cuts[i]})
	}
	return out
}

// blockedSpans returns the horizontal extents of openings that cover band.
func blockedSpans(band span, openings []layout.Rectangle) []span {
	var out []span
	for _, o := range openings {
		if o.Y < band.hi-eps && o.Top() > band.lo+eps {
			out = append(out, span{o.X, o.Right()})
		}
	}
	slices.SortFunc(out, func(a, b span) int {
		switch {
		case a.lo < b.lo:
			return -1
		case a.lo > b.lo:
			return 1
		}
		return 0
	})
	return out
}

// subtract removes the sorted blocked spans from cell.
func subtract(cell span, blocked []span) []span {
	pieces := []span{cell}
	for _, b := range blocked {
		var next []span
		for _, p := range pieces {
			if b.hi <= p.lo+eps || b.lo >= p.hi-eps {
				next = append(next, p)
				continue
			}
			if b.lo > p.lo+eps {
				next = append(next, span{p.lo, b.lo})
			}
			if b.hi < p.hi-eps {
				next = append(next, span{b.hi, p.hi})
			}
		}
		pieces = next
	}
	return pieces
}

// Counts tallies rectangles by kind.
func Counts(rects []layout.Rectangle) map[layout.Kind]int {
	out := make(map[layout.Kind]int)
	for _, r := range rects {
		out[r.Type]++
	}
	return out
}
