package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/MeKo-Tech/wallplan/internal/detector"
	"github.com/MeKo-Tech/wallplan/internal/selector"
	"github.com/MeKo-Tech/wallplan/internal/utils"
)

// Overlay colours.
var (
	WallColor    = color.RGBA{R: 220, G: 30, B: 30, A: 255}
	OpeningColor = color.RGBA{R: 30, G: 170, B: 60, A: 255}
	LineColor    = color.RGBA{R: 40, G: 90, B: 220, A: 255}
)

// Overlay draws the selected wall and openings over a copy of img. The copy
// is rebased to a zero origin, matching the pixel space of the selection.
func Overlay(img image.Image, sel *selector.Selection) *image.RGBA {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	if sel == nil {
		return dst
	}
	utils.DrawRect(dst, sel.Wall, WallColor, 3)
	for _, o := range sel.Openings {
		utils.DrawRect(dst, o, OpeningColor, 2)
	}
	return dst
}

// OverlaySegments draws detected line segments onto dst.
func OverlaySegments(dst *image.RGBA, segs []detector.Segment) {
	for _, s := range segs {
		utils.DrawLine(dst, image.Pt(s.X1, s.Y1), image.Pt(s.X2, s.Y2), LineColor, 1)
	}
}
