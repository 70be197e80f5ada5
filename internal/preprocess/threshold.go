package preprocess

import "image"

const (
	foreground = 255
	background = 0
)

// AdaptiveThreshold binarizes g against the mean of a blockSize×blockSize
// neighbourhood minus c. With invert set, pixels at or below the local
// threshold (dark ink) become foreground. Windows are truncated at the
// image border and the mean is taken over the pixels actually covered.
func AdaptiveThreshold(g *image.Gray, blockSize, c int, invert bool) *image.Gray {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(b)
	if w == 0 || h == 0 {
		return out
	}

	// Summed-area table with a zero guard row and column.
	stride := w + 1
	integral := make([]int64, (w+1)*(h+1))
	for y := range h {
		var row int64
		for x := range w {
			row += int64(g.Pix[y*g.Stride+x])
			integral[(y+1)*stride+x+1] = integral[y*stride+x+1] + row
		}
	}

	half := blockSize / 2
	for y := range h {
		y0 := max(0, y-half)
		y1 := min(h, y+half+1)
		for x := range w {
			x0 := max(0, x-half)
			x1 := min(w, x+half+1)
			sum := integral[y1*stride+x1] - integral[y0*stride+x1] - integral[y1*stride+x0] + integral[y0*stride+x0]
			area := int64((y1 - y0) * (x1 - x0))
			v := int64(g.Pix[y*g.Stride+x])

			// v <= mean - c, kept in integers: v*area <= sum - c*area
			below := v*area <= sum-int64(c)*area
			if below == invert {
				out.Pix[y*out.Stride+x] = foreground
			}
		}
	}
	return out
}

// GlobalThreshold binarizes g at level. With invert set, pixels at or below
// level become foreground.
func GlobalThreshold(g *image.Gray, level uint8, invert bool) *image.Gray {
	out := image.NewGray(g.Bounds())
	for i, v := range g.Pix {
		if (v <= level) == invert {
			out.Pix[i] = foreground
		}
	}
	return out
}

// OtsuLevel returns the intensity that maximizes the between-class variance
// of g's histogram.
func OtsuLevel(g *image.Gray) uint8 {
	const bins = 256
	var histogram [bins]int
	for _, v := range g.Pix {
		histogram[v]++
	}
	totalPixels := len(g.Pix)
	if totalPixels == 0 {
		return 127
	}

	var totalSum float64
	for i := range bins {
		totalSum += float64(i) * float64(histogram[i])
	}

	var maxVariance, sumB float64
	bestThreshold := 0
	wB := 0
	for t := range bins {
		wB += histogram[t]
		if wB == 0 {
			continue
		}
		wF := totalPixels - wB
		if wF == 0 {
			break
		}

		sumB += float64(t) * float64(histogram[t])
		meanB := sumB / float64(wB)
		meanF := (totalSum - sumB) / float64(wF)

		// Between-class variance
		variance := float64(wB) * float64(wF) * (meanB - meanF) * (meanB - meanF)
		if variance > maxVariance {
			maxVariance = variance
			bestThreshold = t
		}
	}
	return uint8(bestThreshold) //nolint:gosec // G115: t < 256
}
