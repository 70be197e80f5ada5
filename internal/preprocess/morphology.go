package preprocess

import (
	"image"

	"github.com/MeKo-Tech/wallplan/internal/mempool"
)

// MorphologicalOp represents the type of morphological operation to perform.
type MorphologicalOp int

const (
	MorphNone MorphologicalOp = iota
	MorphDilate
	MorphErode
	MorphOpening // Erode then Dilate - removes small noise
	MorphClosing // Dilate then Erode - fills gaps
)

// MorphConfig holds configuration for morphological operations.
type MorphConfig struct {
	Operation  MorphologicalOp
	KernelSize int // Size of the square structuring element (e.g., 3 for 3x3)
	Iterations int
}

// ApplyMorphology applies a morphological operation to a binary
// raster. Composite operations run all dilations before the erosions, the way
// OpenCV iterates morphologyEx, so closing with 2 iterations bridges gaps up
// to twice the kernel radius.
func ApplyMorphology(g *image.Gray, cfg MorphConfig) *image.Gray {
	if cfg.Operation == MorphNone || cfg.KernelSize <= 1 || cfg.Iterations <= 0 {
		out := image.NewGray(g.Bounds())
		copy(out.Pix, g.Pix)
		return out
	}

	result := g
	repeat := func(op func(*image.Gray, int) *image.Gray) {
		for range cfg.Iterations {
			result = op(result, cfg.KernelSize)
		}
	}
	switch cfg.Operation {
	case MorphDilate:
		repeat(Dilate)
	case MorphErode:
		repeat(Erode)
	case MorphOpening:
		repeat(Erode)
		repeat(Dilate)
	case MorphClosing:
		repeat(Dilate)
		repeat(Erode)
	}
	return result
}

// Dilate expands foreground regions with a square kernel. Pixels outside the
// image do not contribute.
func Dilate(g *image.Gray, kernelSize int) *image.Gray {
	return rankFilter(g, kernelSize, true)
}

// Erode shrinks foreground regions with a square kernel. Pixels outside the
// image do not contribute, so foreground touching the border is preserved.
func Erode(g *image.Gray, kernelSize int) *image.Gray {
	return rankFilter(g, kernelSize, false)
}

// rankFilter computes a separable max (dilate) or min (erode) filter.
func rankFilter(g *image.Gray, kernelSize int, takeMax bool) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	half := kernelSize / 2
	pick := func(a, v uint8) uint8 {
		if takeMax == (v > a) {
			return v
		}
		return a
	}

	tmp := mempool.Uint8.Get(w * h)
	defer mempool.Uint8.Put(tmp)
	for y := range h {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x := range w {
			acc := row[x]
			for k := max(0, x-half); k <= min(w-1, x+half); k++ {
				acc = pick(acc, row[k])
			}
			tmp[y*w+x] = acc
		}
	}

	out := image.NewGray(b)
	for y := range h {
		for x := range w {
			acc := tmp[y*w+x]
			for k := max(0, y-half); k <= min(h-1, y+half); k++ {
				acc = pick(acc, tmp[k*w+x])
			}
			out.Pix[y*out.Stride+x] = acc
		}
	}
	return out
}
