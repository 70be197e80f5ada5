package detector

import "image"

// component describes one connected region of a binary raster. Foreground
// regions use 8-connectivity and background regions 4-connectivity, so that
// the two never cross each other.
type component struct {
	fg     bool
	seed   image.Point // first pixel in raster order
	count  int
	border bool // background region touching the image border
	minX   int
	minY   int
	maxX   int
	maxY   int
}

var (
	neighbors4 = [...]image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	neighbors8 = [...]image.Point{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {-1, 1}, {1, -1}, {-1, -1}}
)

// labelComponents partitions every pixel of bin into components, numbered
// from 1 in the raster order of their seeds. labels[i] holds the component
// number of pixel i.
func labelComponents(bin *image.Gray) ([]int32, []component) {
	b := bin.Bounds()
	w, h := b.Dx(), b.Dy()
	labels := make([]int32, w*h)
	var comps []component
	stack := make([]int32, 0, 256)

	isFG := func(i int) bool {
		return bin.Pix[(i/w)*bin.Stride+i%w] != 0
	}

	for y := range h {
		for x := range w {
			idx := y*w + x
			if labels[idx] != 0 {
				continue
			}
			label := int32(len(comps) + 1) //nolint:gosec // G115: bounded by pixel count
			fg := isFG(idx)
			st := component{fg: fg, seed: image.Pt(x, y), minX: x, minY: y, maxX: x, maxY: y}

			dirs := neighbors4[:]
			if fg {
				dirs = neighbors8[:]
			}

			labels[idx] = label
			stack = append(stack[:0], int32(idx)) //nolint:gosec // G115: bounded by pixel count
			for len(stack) > 0 {
				ci := int(stack[len(stack)-1])
				stack = stack[:len(stack)-1]
				cx, cy := ci%w, ci/w
				updateComponentStats(&st, cx, cy, w, h)

				for _, d := range dirs {
					nx, ny := cx+d.X, cy+d.Y
					if nx < 0 || ny < 0 || nx >= w || ny >= h {
						continue
					}
					ni := ny*w + nx
					if labels[ni] == 0 && isFG(ni) == fg {
						labels[ni] = label
						stack = append(stack, int32(ni)) //nolint:gosec // G115: bounded by pixel count
					}
				}
			}
			comps = append(comps, st)
		}
	}
	return labels, comps
}

// updateComponentStats updates the component statistics with a new pixel.
func updateComponentStats(st *component, cx, cy, w, h int) {
	st.count++
	st.minX = min(st.minX, cx)
	st.minY = min(st.minY, cy)
	st.maxX = max(st.maxX, cx)
	st.maxY = max(st.maxY, cy)
	if cx == 0 || cy == 0 || cx == w-1 || cy == h-1 {
		st.border = true
	}
}
