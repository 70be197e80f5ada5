package pipeline

import (
	"image"
	"image/color"

	"github.com/MeKo-Tech/wallplan/internal/detector"
	"github.com/MeKo-Tech/wallplan/internal/utils"
)

// Contour trace colours.
var (
	outerColor = color.RGBA{R: 255, G: 200, B: 0, A: 255}
	holeColor  = color.RGBA{R: 0, G: 200, B: 255, A: 255}
)

// DrawContours draws every contour of the hierarchy over an RGBA copy of
// the binary raster: outer boundaries in amber, holes in cyan.
func DrawContours(bin *image.Gray, contours []detector.Contour) *image.RGBA {
	if bin == nil {
		return nil
	}
	dst := utils.GrayToRGBA(bin)
	for _, c := range contours {
		col := outerColor
		if c.Hole {
			col = holeColor
		}
		utils.DrawPolygon(dst, c.Points, col, 1)
	}
	return dst
}
