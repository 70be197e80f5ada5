// Package render draws layouts as SVG schematics and detection results as
// raster overlays.
package render

import (
	"bytes"
	"cmp"
	"fmt"
	"html"
	"io"
	"math"
	"slices"
	"strconv"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/layout"
)

// Palette is the block colour cycle, assigned by block type in sorted order.
var Palette = []string{
	"#8dd3c7", "#ffffb3", "#bebada", "#fb8072",
	"#80b1d3", "#fdb462", "#b3de69", "#fccde5",
}

const (
	DefaultPixelsPerUnit = 2.0
	DefaultMargin        = 48.0
	DefaultAxisStep      = 50.0
	wallFill             = "#f4f1ea"
	wallStroke           = "#333333"
	openingStroke        = "#1f78b4"
	legendRow            = 18.0
)

// Options controls the SVG schematic.
type Options struct {
	PixelsPerUnit float64 // drawing scale, SVG pixels per layout unit
	Margin        float64
	AxisStep      float64 // tick spacing in layout units; 0 disables the axes
	Labels        bool
	Legend        bool
	Title         string
}

// DefaultOptions returns labelled output with axes and legend.
func DefaultOptions() Options {
	return Options{
		PixelsPerUnit: DefaultPixelsPerUnit,
		Margin:        DefaultMargin,
		AxisStep:      DefaultAxisStep,
		Labels:        true,
		Legend:        true,
	}
}

// canvas converts layout coordinates to SVG coordinates.
type canvas struct {
	scale, margin, wallH float64
	flip                 bool
}

func (c canvas) x(v float64) float64 { return c.margin + v*c.scale }

// top returns the SVG y of the upper edge of a rectangle spanning [y, y+h].
func (c canvas) top(y, h float64) float64 {
	if c.flip {
		return c.margin + (c.wallH-(y+h))*c.scale
	}
	return c.margin + y*c.scale
}

// SVG writes l as a standalone SVG document. Bottom-left layouts are
// flipped so that y grows upwards on screen.
func SVG(w io.Writer, l *layout.Layout, opts Options) error {
	if l == nil || l.Wall.W <= 0 || l.Wall.H <= 0 {
		return errs.New(errs.CodeInvalidInput, "nothing to render: wall is empty")
	}
	if opts.PixelsPerUnit <= 0 {
		opts.PixelsPerUnit = DefaultPixelsPerUnit
	}
	if opts.Margin < 0 {
		opts.Margin = 0
	}

	c := canvas{
		scale:  opts.PixelsPerUnit,
		margin: opts.Margin,
		wallH:  l.Wall.H,
		flip:   l.Origin == layout.OriginBottomLeft,
	}
	colors := blockColors(l.Blocks)
	types := sortedKeys(colors)

	width := l.Wall.W*c.scale + 2*c.margin
	height := l.Wall.H*c.scale + 2*c.margin
	if opts.Legend && len(types) > 0 {
		height += float64(len(types))*legendRow + legendRow
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`+"\n",
		width, height, math.Ceil(width), math.Ceil(height))
	buf.WriteString(`  <style>text { font-family: sans-serif; font-size: 11px; fill: #222; }</style>` + "\n")
	if opts.Title != "" {
		fmt.Fprintf(&buf, "  <title>%s</title>\n", html.EscapeString(opts.Title))
	}

	fmt.Fprintf(&buf, `  <rect class="wall" x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s" stroke="%s" stroke-width="2"/>`+"\n",
		c.x(0), c.top(0, l.Wall.H), l.Wall.W*c.scale, l.Wall.H*c.scale, wallFill, wallStroke)

	buf.WriteString("  <g class=\"blocks\">\n")
	for _, b := range l.Blocks {
		fill := colors[b.Type]
		fmt.Fprintf(&buf, `    <rect class="block" data-type="%s" x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s" stroke="%s" stroke-width="0.5"/>`+"\n",
			html.EscapeString(string(b.Type)), c.x(b.X), c.top(b.Y, b.H), b.W*c.scale, b.H*c.scale, fill, darken(fill))
	}
	buf.WriteString("  </g>\n")

	buf.WriteString("  <g class=\"openings\">\n")
	for _, o := range l.Openings {
		fmt.Fprintf(&buf, `    <rect class="opening" data-type="%s" x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="#ffffff" stroke="%s" stroke-width="1.5" stroke-dasharray="4 2"/>`+"\n",
			html.EscapeString(string(o.Type)), c.x(o.X), c.top(o.Y, o.H), o.W*c.scale, o.H*c.scale, openingStroke)
		if opts.Labels {
			fmt.Fprintf(&buf, `    <text x="%.2f" y="%.2f" text-anchor="middle">%s %s</text>`+"\n",
				c.x(o.X+o.W/2), c.top(o.Y, o.H)+o.H*c.scale/2, html.EscapeString(string(o.Type)), formatSize(o.W, o.H))
		}
	}
	buf.WriteString("  </g>\n")

	unit := "px"
	if l.Scale.Calibrated() {
		unit = "cm"
	}
	if opts.Labels {
		fmt.Fprintf(&buf, `  <text class="dimensions" x="%.2f" y="%.2f" text-anchor="middle">%s %s</text>`+"\n",
			c.x(l.Wall.W/2), c.margin/2, formatSize(l.Wall.W, l.Wall.H), unit)
	}
	if opts.AxisStep > 0 {
		renderAxes(&buf, c, l.Wall.W, l.Wall.H, opts.AxisStep, unit)
	}
	if opts.Legend && len(types) > 0 {
		renderLegend(&buf, types, colors, l.Blocks, height-float64(len(types))*legendRow-legendRow/2, c.margin)
	}

	buf.WriteString("</svg>\n")
	_, err := w.Write(buf.Bytes())
	return err
}

// blockColors assigns palette colours to block types in sorted order.
func blockColors(blocks []layout.Rectangle) map[layout.Kind]string {
	seen := make(map[layout.Kind]string)
	for _, b := range blocks {
		seen[b.Type] = ""
	}
	for i, k := range sortedKeys(seen) {
		seen[k] = Palette[i%len(Palette)]
	}
	return seen
}

func sortedKeys(m map[layout.Kind]string) []layout.Kind {
	keys := make([]layout.Kind, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b layout.Kind) int { return cmp.Compare(a, b) })
	return keys
}

// darken returns the outline colour for a fill.
func darken(hex string) string {
	c, err := colorful.Hex(hex)
	if err != nil {
		return wallStroke
	}
	return c.BlendLab(colorful.Color{}, 0.35).Clamped().Hex()
}

func renderAxes(buf *bytes.Buffer, c canvas, w, h, step float64, unit string) {
	x0 := c.x(0)
	base := c.top(0, h) + h*c.scale // lower wall edge on screen
	buf.WriteString("  <g class=\"axes\" stroke=\"#666\" stroke-width=\"1\">\n")
	fmt.Fprintf(buf, `    <line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"/>`+"\n", x0, base+8, c.x(w), base+8)
	for v := 0.0; v <= w+1e-9; v += step {
		x := c.x(v)
		fmt.Fprintf(buf, `    <line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"/>`+"\n", x, base+4, x, base+12)
		fmt.Fprintf(buf, `    <text x="%.2f" y="%.2f" text-anchor="middle" stroke="none">%s</text>`+"\n", x, base+24, trim(v))
	}
	fmt.Fprintf(buf, `    <line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"/>`+"\n", x0-8, c.top(0, h), x0-8, base)
	for v := 0.0; v <= h+1e-9; v += step {
		// Ticks count upwards from the wall foot when flipped.
		y := c.top(v, 0)
		fmt.Fprintf(buf, `    <line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"/>`+"\n", x0-12, y, x0-4, y)
		fmt.Fprintf(buf, `    <text x="%.2f" y="%.2f" text-anchor="end" stroke="none">%s</text>`+"\n", x0-14, y+4, trim(v))
	}
	fmt.Fprintf(buf, `    <text x="%.2f" y="%.2f" stroke="none">%s</text>`+"\n", c.x(w)+6, base+24, unit)
	buf.WriteString("  </g>\n")
}

func renderLegend(buf *bytes.Buffer, types []layout.Kind, colors map[layout.Kind]string, blocks []layout.Rectangle, y, x float64) {
	counts := make(map[layout.Kind]int)
	for _, b := range blocks {
		counts[b.Type]++
	}
	buf.WriteString("  <g class=\"legend\">\n")
	for i, k := range types {
		ry := y + float64(i)*legendRow
		fmt.Fprintf(buf, `    <rect x="%.2f" y="%.2f" width="12" height="12" fill="%s" stroke="%s"/>`+"\n", x, ry, colors[k], darken(colors[k]))
		fmt.Fprintf(buf, `    <text x="%.2f" y="%.2f">%s × %d</text>`+"\n", x+18, ry+10, html.EscapeString(string(k)), counts[k])
	}
	buf.WriteString("  </g>\n")
}

func formatSize(w, h float64) string {
	return trim(w) + "×" + trim(h)
}

// trim formats v with at most two decimals and no trailing zeros.
func trim(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
