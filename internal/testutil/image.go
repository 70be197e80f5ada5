package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common plan raster sizes.
	SmallSize  = ImageSize{320, 240}
	MediumSize = ImageSize{640, 480}
	LargeSize  = ImageSize{1024, 768}
)

// PlanConfig describes a synthetic wall plan: a wall outline with opening
// outlines drawn in ink on paper.
type PlanConfig struct {
	Size       ImageSize
	Wall       image.Rectangle
	Openings   []image.Rectangle
	Stroke     int
	Label      string // drawn under the wall, outside of it
	Background color.Color
	Ink        color.Color
}

// DefaultPlanConfig returns a medium plan with one window and one door.
func DefaultPlanConfig() PlanConfig {
	return PlanConfig{
		Size: MediumSize,
		Wall: image.Rect(40, 60, 600, 380),
		Openings: []image.Rectangle{
			image.Rect(120, 140, 220, 220),
			image.Rect(380, 200, 460, 360),
		},
		Stroke:     3,
		Background: color.White,
		Ink:        color.Black,
	}
}

// GeneratePlan renders the configured plan as an RGBA raster.
func GeneratePlan(cfg PlanConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cfg.Size.Width, cfg.Size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{cfg.Background}, image.Point{}, draw.Src)

	stroke := max(cfg.Stroke, 1)
	if !cfg.Wall.Empty() {
		StrokeRect(img, cfg.Wall, stroke, cfg.Ink)
	}
	for _, o := range cfg.Openings {
		StrokeRect(img, o, stroke, cfg.Ink)
	}

	if cfg.Label != "" {
		drawer := &font.Drawer{
			Dst:  img,
			Src:  &image.Uniform{cfg.Ink},
			Face: basicfont.Face7x13,
		}
		textWidth := font.MeasureString(basicfont.Face7x13, cfg.Label).Ceil()
		x := cfg.Wall.Min.X + (cfg.Wall.Dx()-textWidth)/2
		y := cfg.Wall.Max.Y + stroke + basicfont.Face7x13.Metrics().Height.Ceil()
		drawer.Dot = fixed.P(x, y)
		drawer.DrawString(cfg.Label)
	}
	return img
}

// StrokeRect draws an outline of the given thickness inside r.
func StrokeRect(img draw.Image, r image.Rectangle, thickness int, c color.Color) {
	u := &image.Uniform{c}
	draw.Draw(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness), u, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y), u, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y), u, image.Point{}, draw.Src)
}

// HorizontalLinePlan draws a single horizontal ink line, the input shape of
// the line-baseline fallback.
func HorizontalLinePlan(size ImageSize, y, x0, x1, thickness int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(x0, y, x1, y+thickness), &image.Uniform{color.Black}, image.Point{}, draw.Src)
	return img
}

// CreateTestImage creates a simple test image with the specified dimensions and color.
func CreateTestImage(width, height int, backgroundColor color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{backgroundColor}, image.Point{}, draw.Src)
	return img
}

// BinaryRect returns a binary raster with a filled or outlined foreground rectangle.
func BinaryRect(size ImageSize, r image.Rectangle, thickness int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, size.Width, size.Height))
	if thickness <= 0 {
		draw.Draw(g, r, &image.Uniform{color.Gray{Y: 255}}, image.Point{}, draw.Src)
		return g
	}
	StrokeRect(g, r, thickness, color.Gray{Y: 255})
	return g
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img), "Failed to encode PNG image")
	return buf.Bytes()
}

// EncodeJPEG encodes img as JPEG bytes at high quality.
func EncodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}), "Failed to encode JPEG image")
	return buf.Bytes()
}

// SaveImage saves an image to the specified path.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	dir := filepath.Dir(path)
	require.NoError(t, EnsureDir(dir), "Failed to create directory %s", dir)

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	err = png.Encode(file, img)
	require.NoError(t, err, "Failed to encode PNG image")
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")

	return img
}
