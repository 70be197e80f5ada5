// Package estimate computes material quantities and costs for a wall.
package estimate

import (
	"math"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/layout"
)

// Defaults for the volume figures.
const (
	DefaultJointThickness = 1.0    // cm
	DefaultDensity        = 1400.0 // kg/m³ when a block has none
	MortarDensity         = 2000.0 // kg/m³
)

// Line is the quantity and cost of one block type.
type Line struct {
	Type       int     `json:"type" yaml:"type"`
	Name       string  `json:"name,omitempty" yaml:"name,omitempty"`
	Dimensions string  `json:"dimensions" yaml:"dimensions"`
	Quantity   int     `json:"quantity" yaml:"quantity"`
	UnitPrice  float64 `json:"unit_price" yaml:"unit_price"`
	TotalPrice float64 `json:"total_price" yaml:"total_price"`
}

// Summary is the estimate for a plain wall area.
type Summary struct {
	WallArea   float64 `json:"wall_area" yaml:"wall_area"` // m²
	Blocks     []Line  `json:"blocks" yaml:"blocks"`
	TotalPrice float64 `json:"total_price" yaml:"total_price"`
}

// Estimate splits the wall area evenly between the block types and counts
// whole blocks per type. width and height are in centimetres.
func Estimate(width, height float64, types []BlockType) Summary {
	area := (width / 100) * (height / 100)
	return summarize(area, types)
}

func summarize(area float64, types []BlockType) Summary {
	s := Summary{WallArea: area, Blocks: make([]Line, 0, len(types))}
	for _, bt := range types {
		blockArea := (bt.Width / 100) * (bt.Height / 100)
		count := 0
		if blockArea > 0 && area > 0 {
			count = int(math.Floor(area / blockArea / float64(len(types))))
		}
		total := round2(float64(count) * bt.Price)
		s.Blocks = append(s.Blocks, Line{
			Type:       bt.ID,
			Name:       bt.Name,
			Dimensions: bt.Dimensions(),
			Quantity:   count,
			UnitPrice:  bt.Price,
			TotalPrice: total,
		})
		s.TotalPrice += total
	}
	s.TotalPrice = round2(s.TotalPrice)
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Options tunes the layout estimate.
type Options struct {
	JointThickness float64 `mapstructure:"joint_thickness" yaml:"joint_thickness" json:"joint_thickness"` // cm
	Depth          float64 `mapstructure:"depth" yaml:"depth" json:"depth"`                               // cm, 0 uses the first block's depth
}

// DefaultOptions returns the default joint thickness and block depth.
func DefaultOptions() Options {
	return Options{JointThickness: DefaultJointThickness}
}

// LayoutSummary extends Summary with opening-aware volumes.
type LayoutSummary struct {
	Summary      `yaml:",inline"`
	GrossArea    float64 `json:"gross_area" yaml:"gross_area"`       // m²
	OpeningArea  float64 `json:"opening_area" yaml:"opening_area"`   // m²
	WallVolume   float64 `json:"wall_volume" yaml:"wall_volume"`     // m³
	MortarVolume float64 `json:"mortar_volume" yaml:"mortar_volume"` // m³
	WallWeight   float64 `json:"wall_weight" yaml:"wall_weight"`     // kg
}

// EstimateLayout estimates a calibrated layout in centimetres. Openings are
// subtracted from the wall area before counting blocks.
func EstimateLayout(l *layout.Layout, types []BlockType, opts Options) (*LayoutSummary, error) {
	if l == nil {
		return nil, errs.New(errs.CodeInvalidInput, "no layout to estimate")
	}
	if !l.Scale.Calibrated() {
		return nil, errs.New(errs.CodeInvalidInput, "layout is in pixels; calibrate it with the wall width and height first")
	}
	if len(types) == 0 {
		return nil, errs.New(errs.CodeInvalidInput, "no block types given")
	}
	if opts.JointThickness < 0 || opts.Depth < 0 {
		return nil, errs.New(errs.CodeInvalidDimensions, "joint thickness and depth must not be negative")
	}

	gross := (l.Wall.W / 100) * (l.Wall.H / 100)
	openings := l.OpeningArea() / 10000
	net := math.Max(0, gross-openings)

	out := &LayoutSummary{
		Summary:     summarize(net, types),
		GrossArea:   gross,
		OpeningArea: openings,
	}

	main := types[0]
	depth := opts.Depth
	if depth == 0 {
		depth = main.Depth
	}
	out.WallVolume = net * depth / 100

	// Share of a course module taken by joints.
	t := opts.JointThickness
	module := (main.Width + t) * (main.Height + t)
	if module > 0 {
		out.MortarVolume = out.WallVolume * (1 - main.Width*main.Height/module)
	}

	density := main.Density
	if density == 0 {
		density = DefaultDensity
	}
	out.WallWeight = (out.WallVolume-out.MortarVolume)*density + out.MortarVolume*MortarDensity
	return out, nil
}
