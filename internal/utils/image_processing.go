package utils

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// ImageConstraints bounds the raster sizes accepted by the pipeline.
type ImageConstraints struct {
	MaxPixels int
	MinWidth  int
	MinHeight int
}

// DefaultImageConstraints returns limits suited to scanned wall plans.
func DefaultImageConstraints() ImageConstraints {
	return ImageConstraints{
		MaxPixels: 40_000_000,
		MinWidth:  8,
		MinHeight: 8,
	}
}

// FitPixelBudget downscales img with Lanczos resampling so that its pixel
// count does not exceed constraints.MaxPixels. Aspect ratio is preserved and
// images are never upscaled.
func FitPixelBudget(img image.Image, constraints ImageConstraints) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < constraints.MinWidth || h < constraints.MinHeight {
		return nil, &ImageProcessingError{
			Operation: "resize",
			Err:       fmt.Errorf("image dimensions %dx%d below minimum %dx%d", w, h, constraints.MinWidth, constraints.MinHeight),
		}
	}
	if constraints.MaxPixels <= 0 || w*h <= constraints.MaxPixels {
		return img, nil
	}
	scale := math.Sqrt(float64(constraints.MaxPixels) / float64(w*h))
	nw := max(1, int(float64(w)*scale))
	nh := max(1, int(float64(h)*scale))
	return imaging.Resize(img, nw, nh, imaging.Lanczos), nil
}

// ResizeToWidth resamples img to the given width keeping the aspect ratio.
func ResizeToWidth(img image.Image, width int) image.Image {
	if width <= 0 || img.Bounds().Dx() == width {
		return img
	}
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}

// ToGray converts any image into an 8-bit single channel raster anchored at
// the origin, using imaging's luminance weights.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return CloneGray(g)
	}
	nrgba := imaging.Grayscale(img)
	b := nrgba.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		src := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+b.Dx()*4]
		dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()]
		for x := range dst {
			dst[x] = src[x*4]
		}
	}
	return out
}

// CloneGray returns a deep copy of g.
func CloneGray(g *image.Gray) *image.Gray {
	out := image.NewGray(g.Bounds())
	copy(out.Pix, g.Pix)
	return out
}

// GrayToRGBA expands a single-channel raster for colour annotation.
func GrayToRGBA(g *image.Gray) *image.RGBA {
	b := g.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := g.GrayAt(x, y).Y
			out.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return out
}

// CountNonZero returns the number of foreground pixels in a binary raster.
func CountNonZero(g *image.Gray) int {
	n := 0
	for _, v := range g.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}
