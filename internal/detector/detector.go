// Package detector extracts contours and line segments from a binary plan
// raster.
//
// Two strategies run on the same input: contour mode traces the outer
// boundaries of ink regions (plus the holes inside them), and line mode runs
// a probabilistic Hough transform over a Canny edge map. The pure Go backend
// is always available; building with -tags gocv adds an OpenCV backend.
package detector

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"slices"

	"github.com/MeKo-Tech/wallplan/internal/errs"
)

// Mode selects which features are extracted.
type Mode string

const (
	ModeContour Mode = "contour"
	ModeLine    Mode = "line"
	ModeBoth    Mode = "both"
)

// Detection thresholds.
const (
	DefaultMinContourAreaFraction = 0.002
	DefaultApproxEpsilonFraction  = 0.02
	DefaultCannyLow               = 50.0
	DefaultCannyHigh              = 150.0
	DefaultHoughRho               = 1.0
	DefaultHoughThetaDeg          = 1.0
	DefaultHoughThreshold         = 80
	DefaultMinLineLength          = 50
	DefaultMaxLineGap             = 10
	DefaultHorizontalTolerancePx  = 4
	DefaultSeed                   = 1
)

// ErrNoBackend is returned when the requested backend is not linked into the binary.
var ErrNoBackend = errors.New("detector: backend not linked; build with -tags=gocv for opencv")

// Config holds detection parameters.
type Config struct {
	Mode                   Mode        `mapstructure:"mode" yaml:"mode" json:"mode"`
	Backend                string      `mapstructure:"backend" yaml:"backend" json:"backend"`
	MinContourAreaFraction float64     `mapstructure:"min_contour_area_fraction" yaml:"min_contour_area_fraction" json:"min_contour_area_fraction"`
	ApproxEpsilonFraction  float64     `mapstructure:"approx_epsilon_fraction" yaml:"approx_epsilon_fraction" json:"approx_epsilon_fraction"`
	CannyLow               float64     `mapstructure:"canny_low" yaml:"canny_low" json:"canny_low"`
	CannyHigh              float64     `mapstructure:"canny_high" yaml:"canny_high" json:"canny_high"`
	Hough                  HoughParams `mapstructure:"hough" yaml:"hough" json:"hough"`
	HorizontalTolerancePx  int         `mapstructure:"horizontal_tolerance_px" yaml:"horizontal_tolerance_px" json:"horizontal_tolerance_px"`
}

// DefaultConfig returns the default detection configuration.
func DefaultConfig() Config {
	return Config{
		Mode:                   ModeBoth,
		Backend:                BackendNative,
		MinContourAreaFraction: DefaultMinContourAreaFraction,
		ApproxEpsilonFraction:  DefaultApproxEpsilonFraction,
		CannyLow:               DefaultCannyLow,
		CannyHigh:              DefaultCannyHigh,
		Hough:                  DefaultHoughParams(),
		HorizontalTolerancePx:  DefaultHorizontalTolerancePx,
	}
}

// Validate reports unusable parameter combinations.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeContour, ModeLine, ModeBoth:
	default:
		return fmt.Errorf("unknown detection mode %q", c.Mode)
	}
	if c.MinContourAreaFraction < 0 || c.MinContourAreaFraction >= 1 {
		return fmt.Errorf("min contour area fraction must be in [0, 1), got %v", c.MinContourAreaFraction)
	}
	if c.ApproxEpsilonFraction <= 0 || c.ApproxEpsilonFraction >= 1 {
		return fmt.Errorf("approx epsilon fraction must be in (0, 1), got %v", c.ApproxEpsilonFraction)
	}
	if c.CannyLow < 0 || c.CannyHigh <= c.CannyLow {
		return fmt.Errorf("canny thresholds must satisfy 0 <= low < high, got %v/%v", c.CannyLow, c.CannyHigh)
	}
	if c.HorizontalTolerancePx < 0 {
		return errors.New("horizontal tolerance must be >= 0")
	}
	return c.Hough.Validate()
}

func (c Config) contours() bool { return c.Mode == ModeContour || c.Mode == ModeBoth }
func (c Config) lines() bool    { return c.Mode == ModeLine || c.Mode == ModeBoth }

// Features is everything the detector found in one raster.
type Features struct {
	Width      int
	Height     int
	Hierarchy  []Contour // every contour, outer boundaries and holes
	External   []Contour // outer contours without parent, above the area threshold
	Lines      []Segment
	Horizontal []Segment // near-horizontal subset of Lines
	Edges      *image.Gray
	Backend    string
}

// ImageArea returns the pixel area of the analysed raster.
func (f *Features) ImageArea() float64 { return float64(f.Width) * float64(f.Height) }

// Empty reports whether nothing at all was detected.
func (f *Features) Empty() bool {
	return len(f.Hierarchy) == 0 && len(f.Lines) == 0
}

// Detector runs feature extraction with a fixed configuration. It holds no
// per-call state and is safe for concurrent use.
type Detector struct {
	config  Config
	backend Backend
}

// NewDetector validates cfg and resolves its backend.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errs.Wrap(errs.CodeInvalidInput, err, "invalid detector configuration")
	}
	backend, err := LookupBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	slog.Debug("Initializing detector", "mode", cfg.Mode, "backend", backend.Name())
	return &Detector{config: cfg, backend: backend}, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config { return d.config }

// Detect extracts features from a binary raster (foreground != 0).
func (d *Detector) Detect(bin *image.Gray) (*Features, error) {
	if bin == nil || bin.Bounds().Empty() {
		return nil, errs.New(errs.CodeInvalidInput, "binary raster is empty")
	}
	cfg := d.config
	f := &Features{
		Width:   bin.Bounds().Dx(),
		Height:  bin.Bounds().Dy(),
		Backend: d.backend.Name(),
	}

	if cfg.contours() {
		all, err := d.backend.Contours(bin)
		if err != nil {
			return nil, errs.Wrap(errs.CodeInternal, err, "contour extraction failed")
		}
		minArea := cfg.MinContourAreaFraction * f.ImageArea()
		for i := range all {
			all[i].Index = i
			all[i].finalize(cfg.ApproxEpsilonFraction)
			if all[i].IsOuter() && all[i].Area >= minArea {
				f.External = append(f.External, all[i])
			}
		}
		f.Hierarchy = all
	}

	if cfg.lines() {
		edges, err := d.backend.Edges(bin, cfg.CannyLow, cfg.CannyHigh)
		if err != nil {
			return nil, errs.Wrap(errs.CodeInternal, err, "edge detection failed")
		}
		lines, err := d.backend.Lines(edges, cfg.Hough)
		if err != nil {
			return nil, errs.Wrap(errs.CodeInternal, err, "line detection failed")
		}
		f.Edges = edges
		f.Lines = lines
		f.Horizontal = FilterHorizontal(lines, cfg.HorizontalTolerancePx)
	}

	slog.Debug("Detection complete",
		"contours", len(f.Hierarchy),
		"external", len(f.External),
		"lines", len(f.Lines),
		"horizontal", len(f.Horizontal))
	return f, nil
}

// Detect is a convenience wrapper around NewDetector and Detector.Detect.
func Detect(bin *image.Gray, cfg Config) (*Features, error) {
	d, err := NewDetector(cfg)
	if err != nil {
		return nil, err
	}
	return d.Detect(bin)
}

// FilterHorizontal keeps segments whose end points differ by at most tol
// pixels vertically. Order is preserved.
func FilterHorizontal(lines []Segment, tol int) []Segment {
	out := make([]Segment, 0, len(lines))
	for _, l := range lines {
		if l.IsHorizontal(tol) {
			out = append(out, l)
		}
	}
	return out
}

// Segment is a line segment between two pixel positions.
type Segment struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Length returns the Euclidean length of s.
func (s Segment) Length() float64 {
	return math.Hypot(float64(s.X2-s.X1), float64(s.Y2-s.Y1))
}

// IsHorizontal reports whether the vertical difference of the end points is
// at most tol pixels.
func (s Segment) IsHorizontal(tol int) bool {
	dy := s.Y2 - s.Y1
	return max(dy, -dy) <= tol
}

// MinX returns the left end of s.
func (s Segment) MinX() int { return min(s.X1, s.X2) }

// MaxX returns the right end of s.
func (s Segment) MaxX() int { return max(s.X1, s.X2) }

// MaxY returns the lower end of s in image coordinates.
func (s Segment) MaxY() int { return max(s.Y1, s.Y2) }

// Backend implements the raster primitives behind Detect.
type Backend interface {
	Name() string
	Contours(bin *image.Gray) ([]Contour, error)
	Edges(bin *image.Gray, low, high float64) (*image.Gray, error)
	Lines(edges *image.Gray, p HoughParams) ([]Segment, error)
}

// Backend names.
const (
	BackendNative = "native"
	BackendOpenCV = "opencv"
)

var backends = map[string]func() Backend{
	BackendNative: func() Backend { return nativeBackend{} },
}

func registerBackend(name string, factory func() Backend) {
	backends[name] = factory
}

// LookupBackend returns the named backend; the empty name selects native.
func LookupBackend(name string) (Backend, error) {
	if name == "" {
		name = BackendNative
	}
	factory, ok := backends[name]
	if !ok {
		return nil, errs.Wrap(errs.CodeNoBackend, ErrNoBackend, "backend %q unavailable", name)
	}
	return factory(), nil
}

// AvailableBackends lists the backends linked into this binary.
func AvailableBackends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

type nativeBackend struct{}

func (nativeBackend) Name() string { return BackendNative }

func (nativeBackend) Contours(bin *image.Gray) ([]Contour, error) {
	return findContours(bin), nil
}

func (nativeBackend) Edges(bin *image.Gray, low, high float64) (*image.Gray, error) {
	return Canny(bin, low, high), nil
}

func (nativeBackend) Lines(edges *image.Gray, p HoughParams) ([]Segment, error) {
	return HoughLinesP(edges, p), nil
}
