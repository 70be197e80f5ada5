package detector

import (
	"errors"
	"image"
	"math"
	"math/rand"

	"github.com/MeKo-Tech/wallplan/internal/mempool"
)

// HoughParams configures the probabilistic Hough transform.
type HoughParams struct {
	Rho           float64 `mapstructure:"rho" yaml:"rho" json:"rho"`                                     // distance resolution in pixels
	ThetaDeg      float64 `mapstructure:"theta_deg" yaml:"theta_deg" json:"theta_deg"`                   // angle resolution in degrees
	Threshold     int     `mapstructure:"threshold" yaml:"threshold" json:"threshold"`                   // minimum accumulator votes
	MinLineLength int     `mapstructure:"min_line_length" yaml:"min_line_length" json:"min_line_length"` // shorter segments are rejected
	MaxLineGap    int     `mapstructure:"max_line_gap" yaml:"max_line_gap" json:"max_line_gap"`          // largest gap bridged along a line
	Seed          int64   `mapstructure:"seed" yaml:"seed" json:"seed"`                                  // sampling order seed
}

// DefaultHoughParams returns the default transform parameters.
func DefaultHoughParams() HoughParams {
	return HoughParams{
		Rho:           DefaultHoughRho,
		ThetaDeg:      DefaultHoughThetaDeg,
		Threshold:     DefaultHoughThreshold,
		MinLineLength: DefaultMinLineLength,
		MaxLineGap:    DefaultMaxLineGap,
		Seed:          DefaultSeed,
	}
}

// Validate reports unusable parameters.
func (p HoughParams) Validate() error {
	if p.Rho <= 0 || p.ThetaDeg <= 0 || p.ThetaDeg > 180 {
		return errors.New("hough rho and theta must be positive")
	}
	if p.Threshold <= 0 || p.MinLineLength < 0 || p.MaxLineGap < 0 {
		return errors.New("hough threshold must be positive and lengths non-negative")
	}
	return nil
}

const houghShift = 16

// HoughLinesP finds line segments in an edge map with the progressive
// probabilistic Hough transform. Edge pixels are visited in an order drawn
// from a generator seeded with p.Seed, so identical inputs always yield
// identical segments. Each pixel votes for all angles; once a bin reaches
// the threshold the line is walked in both directions, bridging gaps up to
// MaxLineGap, and its pixels are removed from further voting.
func HoughLinesP(edges *image.Gray, p HoughParams) []Segment {
	b := edges.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil
	}

	theta := p.ThetaDeg * math.Pi / 180
	numAngle := int(math.Round(math.Pi / theta))
	numRho := int(math.Round(float64((w+h)*2+1) / p.Rho))
	irho := 1 / p.Rho

	cosTab := make([]float64, numAngle)
	sinTab := make([]float64, numAngle)
	for n := range numAngle {
		ang := float64(n) * theta
		cosTab[n] = math.Cos(ang) * irho
		sinTab[n] = math.Sin(ang) * irho
	}

	accum := make([]int, numAngle*numRho)
	mask := mempool.Bool.Get(w * h)
	defer mempool.Bool.Put(mask)
	var points []image.Point
	for y := range h {
		for x := range w {
			if edges.Pix[y*edges.Stride+x] != 0 {
				mask[y*w+x] = true
				points = append(points, image.Pt(x, y))
			}
		}
	}

	rhoIndex := func(n, x, y int) int {
		r := int(math.Round(float64(x)*cosTab[n] + float64(y)*sinTab[n]))
		return r + (numRho-1)/2
	}
	vote := func(x, y, delta int) {
		for n := range numAngle {
			r := rhoIndex(n, x, y)
			if r >= 0 && r < numRho {
				accum[n*numRho+r] += delta
			}
		}
	}

	rng := rand.New(rand.NewSource(p.Seed)) //nolint:gosec // G404: deterministic sampling, not security
	var lines []Segment

	for count := len(points); count > 0; count-- {
		idx := rng.Intn(count)
		pt := points[idx]
		points[idx] = points[count-1]

		if !mask[pt.Y*w+pt.X] {
			continue
		}

		// Vote and remember the strongest angle for this pixel.
		maxVal, maxN := p.Threshold-1, 0
		for n := range numAngle {
			r := rhoIndex(n, pt.X, pt.Y)
			if r < 0 || r >= numRho {
				continue
			}
			accum[n*numRho+r]++
			if v := accum[n*numRho+r]; v > maxVal {
				maxVal, maxN = v, n
			}
		}
		if maxVal < p.Threshold {
			continue
		}

		ends := walkLine(mask, w, h, pt, -sinTab[maxN], cosTab[maxN], p.MaxLineGap)
		good := absInt(ends[1].X-ends[0].X) >= p.MinLineLength ||
			absInt(ends[1].Y-ends[0].Y) >= p.MinLineLength

		// Clear the walked pixels; a good line also withdraws their votes.
		walkClear(mask, w, h, pt, -sinTab[maxN], cosTab[maxN], ends, func(x, y int) {
			if good {
				vote(x, y, -1)
			}
		})

		if good {
			lines = append(lines, Segment{X1: ends[0].X, Y1: ends[0].Y, X2: ends[1].X, Y2: ends[1].Y})
		}
	}
	return lines
}

// lineStepper walks a digital line through a pixel in fixed point.
type lineStepper struct {
	xflag            bool
	x0, y0, dx0, dy0 int
}

func newLineStepper(pt image.Point, a, b float64) lineStepper {
	s := lineStepper{}
	if math.Abs(a) > math.Abs(b) {
		s.xflag = true
		s.dx0 = 1
		if a <= 0 {
			s.dx0 = -1
		}
		s.dy0 = int(math.Round(b * (1 << houghShift) / math.Abs(a)))
		s.x0 = pt.X
		s.y0 = (pt.Y << houghShift) + (1 << (houghShift - 1))
	} else {
		s.dy0 = 1
		if b <= 0 {
			s.dy0 = -1
		}
		s.dx0 = int(math.Round(a * (1 << houghShift) / math.Abs(b)))
		s.x0 = (pt.X << houghShift) + (1 << (houghShift - 1))
		s.y0 = pt.Y
	}
	return s
}

// walk visits pixels from the start in direction k (0 forward, 1 backward)
// until visit returns false or the image border is reached.
func (s lineStepper) walk(k, w, h int, visit func(x, y int) bool) {
	x, y, dx, dy := s.x0, s.y0, s.dx0, s.dy0
	if k > 0 {
		dx, dy = -dx, -dy
	}
	for ; ; x, y = x+dx, y+dy {
		var px, py int
		if s.xflag {
			px, py = x, y>>houghShift
		} else {
			px, py = x>>houghShift, y
		}
		if px < 0 || px >= w || py < 0 || py >= h {
			return
		}
		if !visit(px, py) {
			return
		}
	}
}

// walkLine returns the two end points of the line through pt with direction
// (a, b), following edge pixels and bridging at most gap missing pixels.
func walkLine(mask []bool, w, h int, pt image.Point, a, b float64, gap int) [2]image.Point {
	s := newLineStepper(pt, a, b)
	ends := [2]image.Point{pt, pt}
	for k := range 2 {
		missed := 0
		s.walk(k, w, h, func(x, y int) bool {
			if mask[y*w+x] {
				missed = 0
				ends[k] = image.Pt(x, y)
				return true
			}
			missed++
			return missed <= gap
		})
	}
	return ends
}

// walkClear removes the edge pixels between pt and the end points from the
// mask, calling onClear for each.
func walkClear(mask []bool, w, h int, pt image.Point, a, b float64, ends [2]image.Point, onClear func(x, y int)) {
	s := newLineStepper(pt, a, b)
	for k := range 2 {
		s.walk(k, w, h, func(x, y int) bool {
			if mask[y*w+x] {
				mask[y*w+x] = false
				onClear(x, y)
			}
			return x != ends[k].X || y != ends[k].Y
		})
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
