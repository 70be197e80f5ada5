package detector

import (
	"image"
	"math"

	"github.com/MeKo-Tech/wallplan/internal/mempool"
)

// gaussian5 is the 5x5 Gaussian kernel (sigma about 1.4) that sums to 273.
var gaussian5 = [5][5]float64{
	{1, 4, 7, 4, 1},
	{4, 16, 26, 16, 4},
	{7, 26, 41, 26, 7},
	{4, 16, 26, 16, 4},
	{1, 4, 7, 4, 1},
}

const gaussian5Sum = 273.0

// Canny runs Canny edge detection on g: 5x5 Gaussian smoothing, Sobel
// gradients, non-maximum suppression and hysteresis between low and high.
// Thresholds are on the 0..255 intensity scale. Edge pixels are 255.
func Canny(g *image.Gray, low, high float64) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(b)
	if w < 3 || h < 3 {
		return out
	}

	at := func(buf []float64, x, y int) float64 {
		return buf[clamp(y, 0, h-1)*w+clamp(x, 0, w-1)]
	}

	src := mempool.Float64.Get(w * h)
	defer mempool.Float64.Put(src)
	for y := range h {
		for x := range w {
			src[y*w+x] = float64(g.Pix[y*g.Stride+x])
		}
	}

	// Gaussian blur with replicated borders
	blurred := mempool.Float64.Get(w * h)
	defer mempool.Float64.Put(blurred)
	for y := range h {
		for x := range w {
			var sum float64
			for ky := -2; ky <= 2; ky++ {
				for kx := -2; kx <= 2; kx++ {
					sum += at(src, x+kx, y+ky) * gaussian5[ky+2][kx+2]
				}
			}
			blurred[y*w+x] = sum / gaussian5Sum
		}
	}

	// Sobel gradients
	magnitude := mempool.Float64.Get(w * h)
	defer mempool.Float64.Put(magnitude)
	direction := mempool.Float64.Get(w * h)
	defer mempool.Float64.Put(direction)
	for y := range h {
		for x := range w {
			gx := -at(blurred, x-1, y-1) + at(blurred, x+1, y-1) -
				2*at(blurred, x-1, y) + 2*at(blurred, x+1, y) -
				at(blurred, x-1, y+1) + at(blurred, x+1, y+1)
			gy := -at(blurred, x-1, y-1) - 2*at(blurred, x, y-1) - at(blurred, x+1, y-1) +
				at(blurred, x-1, y+1) + 2*at(blurred, x, y+1) + at(blurred, x+1, y+1)
			magnitude[y*w+x] = math.Hypot(gx, gy)
			direction[y*w+x] = math.Atan2(gy, gx)
		}
	}

	// Non-maximum suppression along the quantized gradient direction
	suppressed := mempool.Float64.Get(w * h)
	defer mempool.Float64.Put(suppressed)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			angle := direction[i]
			mag := magnitude[i]

			var n1, n2 float64
			switch {
			case (angle >= -math.Pi/8 && angle < math.Pi/8) || angle >= 7*math.Pi/8 || angle < -7*math.Pi/8:
				n1, n2 = magnitude[i-1], magnitude[i+1]
			case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
				n1, n2 = magnitude[i-w-1], magnitude[i+w+1]
			case (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8):
				n1, n2 = magnitude[i-w], magnitude[i+w]
			default:
				n1, n2 = magnitude[i-w+1], magnitude[i+w-1]
			}

			if mag > 0 && mag >= n1 && mag >= n2 {
				suppressed[i] = mag
			}
		}
	}

	// Hysteresis: grow strong edges through connected weak ones.
	stack := make([]int, 0, 1024)
	for i, v := range suppressed {
		if v >= high && out.Pix[(i/w)*out.Stride+i%w] == 0 {
			out.Pix[(i/w)*out.Stride+i%w] = 255
			stack = append(stack, i)
		}
		for len(stack) > 0 {
			ci := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			cx, cy := ci%w, ci/w
			for _, d := range neighbors8 {
				nx, ny := cx+d.X, cy+d.Y
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				ni := ny*w + nx
				oi := ny*out.Stride + nx
				if out.Pix[oi] == 0 && suppressed[ni] > 0 && suppressed[ni] >= low {
					out.Pix[oi] = 255
					stack = append(stack, ni)
				}
			}
		}
	}
	return out
}

// clamp constrains an integer value to the range [lo, hi].
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
