// Package selector decides which detected features form the wall and its
// openings.
//
// Contours are trusted first. When no outer contour is large enough the
// longest horizontal line is taken as the bottom edge of the wall, and as a
// last resort the largest raw contour becomes the wall.
package selector

import (
	"cmp"
	"errors"
	"image"
	"log/slog"
	"math"
	"slices"

	"github.com/MeKo-Tech/wallplan/internal/detector"
	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/layout"
)

// Selection heuristics.
const (
	DefaultEdgeMarginPx           = 2
	DefaultMinOpeningAreaFraction = 0.001
	DefaultMinOpeningVertices     = 4
	DefaultMaxOpeningVertices     = 6
	DefaultMaxOpeningWallFraction = 0.75
	DefaultBaselineHeightFraction = 0.10
)

// Config holds the selection thresholds.
type Config struct {
	EdgeMarginPx           int     `mapstructure:"edge_margin_px" yaml:"edge_margin_px" json:"edge_margin_px"`
	MinOpeningAreaFraction float64 `mapstructure:"min_opening_area_fraction" yaml:"min_opening_area_fraction" json:"min_opening_area_fraction"`
	MinOpeningVertices     int     `mapstructure:"min_opening_vertices" yaml:"min_opening_vertices" json:"min_opening_vertices"`
	MaxOpeningVertices     int     `mapstructure:"max_opening_vertices" yaml:"max_opening_vertices" json:"max_opening_vertices"`
	MaxOpeningWallFraction float64 `mapstructure:"max_opening_wall_fraction" yaml:"max_opening_wall_fraction" json:"max_opening_wall_fraction"`
	BaselineHeightFraction float64 `mapstructure:"baseline_height_fraction" yaml:"baseline_height_fraction" json:"baseline_height_fraction"`
}

// DefaultConfig returns the default selection thresholds.
func DefaultConfig() Config {
	return Config{
		EdgeMarginPx:           DefaultEdgeMarginPx,
		MinOpeningAreaFraction: DefaultMinOpeningAreaFraction,
		MinOpeningVertices:     DefaultMinOpeningVertices,
		MaxOpeningVertices:     DefaultMaxOpeningVertices,
		MaxOpeningWallFraction: DefaultMaxOpeningWallFraction,
		BaselineHeightFraction: DefaultBaselineHeightFraction,
	}
}

// Validate reports unusable thresholds.
func (c Config) Validate() error {
	if c.EdgeMarginPx < 0 {
		return errors.New("edge margin must be >= 0")
	}
	if c.MinOpeningAreaFraction < 0 || c.MinOpeningAreaFraction >= 1 {
		return errors.New("min opening area fraction must be in [0, 1)")
	}
	if c.MinOpeningVertices < 3 || c.MaxOpeningVertices < c.MinOpeningVertices {
		return errors.New("opening vertex range must satisfy 3 <= min <= max")
	}
	if c.MaxOpeningWallFraction <= 0 || c.MaxOpeningWallFraction > 1 {
		return errors.New("max opening wall fraction must be in (0, 1]")
	}
	if c.BaselineHeightFraction <= 0 || c.BaselineHeightFraction > 1 {
		return errors.New("baseline height fraction must be in (0, 1]")
	}
	return nil
}

// Selection is the wall and openings chosen in pixel space.
type Selection struct {
	Wall        image.Rectangle   `json:"wall"`
	Openings    []image.Rectangle `json:"openings"`
	Source      layout.Source     `json:"source"`
	Approximate bool              `json:"approximate"`
	WallContour int               `json:"wall_contour"` // hierarchy index, -1 when the wall came from a line
}

// Geometry returns the selection in the form the coordinate mapper takes.
func (s *Selection) Geometry() layout.PixelGeometry {
	return layout.PixelGeometry{
		Wall:        s.Wall,
		Openings:    s.Openings,
		Source:      s.Source,
		Approximate: s.Approximate,
	}
}

// Select picks the wall and openings from f. bounds is the analysed raster
// area; it is used for the image area when f carries no size.
func Select(f *detector.Features, bounds image.Rectangle, cfg Config) (*Selection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errs.Wrap(errs.CodeInvalidInput, err, "invalid selector configuration")
	}
	if f == nil {
		return nil, errs.New(errs.CodeInvalidInput, "no features to select from")
	}
	imageArea := f.ImageArea()
	if imageArea == 0 {
		imageArea = float64(bounds.Dx()) * float64(bounds.Dy())
	}

	if wall, ok := largestExternal(f.External); ok {
		sel := &Selection{
			Wall:        wall.Bounds,
			Source:      layout.SourceContour,
			WallContour: wall.Index,
		}
		sel.Openings = selectOpenings(f.Hierarchy, wall, imageArea, cfg)
		slog.Debug("Selected wall from contour",
			"wall", sel.Wall, "area", wall.Area, "openings", len(sel.Openings))
		return sel, nil
	}

	if line, ok := longestHorizontal(f.Horizontal); ok {
		sel := &Selection{
			Wall:        baselineWall(line, cfg.BaselineHeightFraction),
			Openings:    []image.Rectangle{},
			Source:      layout.SourceLine,
			Approximate: true,
			WallContour: -1,
		}
		slog.Debug("Selected wall from baseline", "line", line, "wall", sel.Wall)
		return sel, nil
	}

	if raw, ok := largestRaw(f.Hierarchy); ok {
		sel := &Selection{
			Wall:        raw.Bounds,
			Openings:    []image.Rectangle{},
			Source:      layout.SourceRawContour,
			WallContour: raw.Index,
		}
		slog.Debug("Selected wall from raw contour", "wall", sel.Wall)
		return sel, nil
	}

	return nil, errs.New(errs.CodeNoStructureDetected, "no wall structure found in the image")
}

// largestExternal returns the contour with the maximum area; the first one
// wins exact ties.
func largestExternal(cs []detector.Contour) (detector.Contour, bool) {
	if len(cs) == 0 {
		return detector.Contour{}, false
	}
	best := 0
	for i := 1; i < len(cs); i++ {
		if cs[i].Area > cs[best].Area {
			best = i
		}
	}
	return cs[best], true
}

// largestRaw ranks outer boundaries by area, then box area, then order.
// Holes are only considered when there is no outer boundary at all.
func largestRaw(cs []detector.Contour) (detector.Contour, bool) {
	pick := func(holes bool) int {
		best := -1
		for i := range cs {
			if cs[i].Hole != holes || cs[i].Bounds.Empty() {
				continue
			}
			if best < 0 || rawBetter(cs[i], cs[best]) {
				best = i
			}
		}
		return best
	}
	best := pick(false)
	if best < 0 {
		best = pick(true)
	}
	if best < 0 {
		return detector.Contour{}, false
	}
	return cs[best], true
}

func rawBetter(a, b detector.Contour) bool {
	if a.Area != b.Area {
		return a.Area > b.Area
	}
	return boxArea(a.Bounds) > boxArea(b.Bounds)
}

func longestHorizontal(lines []detector.Segment) (detector.Segment, bool) {
	if len(lines) == 0 {
		return detector.Segment{}, false
	}
	best := 0
	for i := 1; i < len(lines); i++ {
		if lines[i].Length() > lines[best].Length() {
			best = i
		}
	}
	return lines[best], true
}

// baselineWall extends a horizontal segment upwards into a wall rectangle
// whose height is a fixed fraction of its width.
func baselineWall(s detector.Segment, heightFraction float64) image.Rectangle {
	width := s.MaxX() - s.MinX() + 1
	height := max(1, int(math.Round(heightFraction*float64(width))))
	bottom := s.MaxY() + 1
	top := max(0, bottom-height)
	return image.Rect(s.MinX(), top, s.MaxX()+1, bottom)
}

// selectOpenings filters the hierarchy for rectangular contours well inside
// the wall and returns their boxes in reading order.
func selectOpenings(all []detector.Contour, wall detector.Contour, imageArea float64, cfg Config) []image.Rectangle {
	inner := wall.Bounds.Inset(cfg.EdgeMarginPx)
	minArea := cfg.MinOpeningAreaFraction * imageArea
	maxBox := cfg.MaxOpeningWallFraction * boxArea(wall.Bounds)

	var candidates []image.Rectangle
	for _, c := range all {
		if c.Index == wall.Index {
			continue
		}
		if !isOpening(c, inner, minArea, maxBox, cfg) {
			continue
		}
		candidates = append(candidates, c.Bounds)
	}
	return suppressNested(candidates)
}

func isOpening(c detector.Contour, inner image.Rectangle, minArea, maxBox float64, cfg Config) bool {
	if inner.Empty() || !c.Bounds.In(inner) {
		return false
	}
	if c.Area <= minArea {
		return false
	}
	if n := len(c.Approx); n < cfg.MinOpeningVertices || n > cfg.MaxOpeningVertices {
		return false
	}
	return boxArea(c.Bounds) < maxBox
}

// suppressNested drops boxes contained in a larger accepted box and orders
// the rest top-to-bottom, then left-to-right.
func suppressNested(boxes []image.Rectangle) []image.Rectangle {
	slices.SortStableFunc(boxes, func(a, b image.Rectangle) int {
		return cmp.Compare(boxArea(b), boxArea(a))
	})
	kept := make([]image.Rectangle, 0, len(boxes))
	for _, b := range boxes {
		nested := false
		for _, k := range kept {
			if b.In(k) {
				nested = true
				break
			}
		}
		if !nested {
			kept = append(kept, b)
		}
	}
	slices.SortFunc(kept, readingOrder)
	return kept
}

func readingOrder(a, b image.Rectangle) int {
	if a.Min.Y != b.Min.Y {
		return a.Min.Y - b.Min.Y
	}
	if a.Min.X != b.Min.X {
		return a.Min.X - b.Min.X
	}
	if a.Max.Y != b.Max.Y {
		return a.Max.Y - b.Max.Y
	}
	return a.Max.X - b.Max.X
}

func boxArea(r image.Rectangle) float64 {
	return float64(r.Dx()) * float64(r.Dy())
}
