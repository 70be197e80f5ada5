// Package preprocess turns a plan raster into a clean binary image in which
// ink (wall lines) is foreground (255) on a black background.
//
// The stages run in a fixed order: grayscale, Gaussian blur, contrast
// normalization, inverted adaptive threshold and morphological closing.
// Every intermediate raster is kept on the Result for the debug trace.
package preprocess

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/utils"
	"github.com/anthonynsimon/bild/blur"
)

// Defaults for the preprocessing stages.
const (
	DefaultBlurRadius      = 2.0 // 5x5 Gaussian support
	MinBlurRadius          = 1.0 // 3x3
	MaxBlurRadius          = 2.0 // 5x5
	DefaultClipPercent     = 1.0
	DefaultBlockSize       = 15
	DefaultThresholdC      = 5
	DefaultCloseKernel     = 3
	DefaultCloseIterations = 2
)

// ThresholdMethod selects the binarization strategy.
type ThresholdMethod string

const (
	// ThresholdMean compares each pixel with the mean of its neighbourhood.
	ThresholdMean ThresholdMethod = "mean"
	// ThresholdOtsu uses a single global Otsu threshold.
	ThresholdOtsu ThresholdMethod = "otsu"
)

// Config holds the preprocessing parameters.
type Config struct {
	BlurRadius      float64         `mapstructure:"blur_radius" yaml:"blur_radius" json:"blur_radius"`
	ClipPercent     float64         `mapstructure:"clip_percent" yaml:"clip_percent" json:"clip_percent"`
	Method          ThresholdMethod `mapstructure:"method" yaml:"method" json:"method"`
	BlockSize       int             `mapstructure:"block_size" yaml:"block_size" json:"block_size"`
	C               int             `mapstructure:"c" yaml:"c" json:"c"`
	Invert          bool            `mapstructure:"invert" yaml:"invert" json:"invert"`
	CloseKernel     int             `mapstructure:"close_kernel" yaml:"close_kernel" json:"close_kernel"`
	CloseIterations int             `mapstructure:"close_iterations" yaml:"close_iterations" json:"close_iterations"`
}

// DefaultConfig returns the validated defaults.
func DefaultConfig() Config {
	return Config{
		BlurRadius:      DefaultBlurRadius,
		ClipPercent:     DefaultClipPercent,
		Method:          ThresholdMean,
		BlockSize:       DefaultBlockSize,
		C:               DefaultThresholdC,
		Invert:          true,
		CloseKernel:     DefaultCloseKernel,
		CloseIterations: DefaultCloseIterations,
	}
}

// Validate reports configuration values that cannot be used.
func (c Config) Validate() error {
	if c.BlurRadius < 0 {
		return fmt.Errorf("blur radius must be >= 0, got %v", c.BlurRadius)
	}
	if c.ClipPercent < 0 || c.ClipPercent >= 50 {
		return fmt.Errorf("clip percent must be in [0, 50), got %v", c.ClipPercent)
	}
	switch c.Method {
	case ThresholdMean, ThresholdOtsu:
	default:
		return fmt.Errorf("unknown threshold method %q", c.Method)
	}
	if c.Method == ThresholdMean && (c.BlockSize < 3 || c.BlockSize%2 == 0) {
		return fmt.Errorf("block size must be odd and >= 3, got %d", c.BlockSize)
	}
	if c.CloseKernel < 0 || c.CloseIterations < 0 {
		return errors.New("close kernel and iterations must be >= 0")
	}
	return nil
}

// Result carries the output of every stage.
type Result struct {
	Gray       *image.Gray
	Blurred    *image.Gray
	Normalized *image.Gray
	Binary     *image.Gray
	Closed     *image.Gray
}

// Run executes all stages on img. The input is never modified.
func Run(img image.Image, cfg Config) (*Result, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errs.New(errs.CodeInvalidInput, "raster is empty")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errs.Wrap(errs.CodeInvalidInput, err, "invalid preprocessing configuration")
	}

	res := &Result{}
	res.Gray = utils.ToGray(img)
	res.Blurred = Blur(res.Gray, cfg.BlurRadius)
	res.Normalized = NormalizeContrast(res.Blurred, cfg.ClipPercent)

	switch cfg.Method {
	case ThresholdOtsu:
		res.Binary = GlobalThreshold(res.Normalized, OtsuLevel(res.Normalized), cfg.Invert)
	default:
		res.Binary = AdaptiveThreshold(res.Normalized, cfg.BlockSize, cfg.C, cfg.Invert)
	}

	res.Closed = ApplyMorphology(res.Binary, MorphConfig{
		Operation:  MorphClosing,
		KernelSize: cfg.CloseKernel,
		Iterations: cfg.CloseIterations,
	})
	return res, nil
}

// Blur applies a Gaussian blur. The radius is clamped so the kernel stays
// between 3x3 and 5x5; a zero radius disables the stage.
func Blur(g *image.Gray, radius float64) *image.Gray {
	if radius <= 0 {
		return utils.CloneGray(g)
	}
	radius = math.Min(math.Max(radius, MinBlurRadius), MaxBlurRadius)
	return utils.ToGray(blur.Gaussian(g, radius))
}

// NormalizeContrast stretches intensities so that the clipPercent darkest and
// brightest pixels saturate at 0 and 255. Flat images are returned unchanged.
func NormalizeContrast(g *image.Gray, clipPercent float64) *image.Gray {
	var hist [256]int
	for _, v := range g.Pix {
		hist[v]++
	}
	total := len(g.Pix)
	clip := int(float64(total) * clipPercent / 100)

	lo, hi := 0, 255
	for acc := 0; lo < 255; lo++ {
		acc += hist[lo]
		if acc > clip {
			break
		}
	}
	for acc := 0; hi > 0; hi-- {
		acc += hist[hi]
		if acc > clip {
			break
		}
	}

	out := utils.CloneGray(g)
	if hi <= lo {
		return out
	}
	scale := 255.0 / float64(hi-lo)
	var lut [256]uint8
	for v := range lut {
		s := math.Round(float64(v-lo) * scale)
		lut[v] = uint8(math.Min(math.Max(s, 0), 255))
	}
	for i, v := range out.Pix {
		out.Pix[i] = lut[v]
	}
	return out
}
