package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/wallplan/internal/render"
)

func newRenderCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <layout-file>",
		Short: "Render a layout as an SVG schematic",
		Long: `Render a layout written by analyze or manual (JSON or YAML, - for stdin) as a
2D SVG schematic with the wall, openings, blocks, axes and a legend.

Examples:
  wallplan render wall.json -o wall.svg
  wallplan manual --width 600 --height 300 --blocks | wallplan render - --scale 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			l, err := decodeLayoutDoc(data)
			if err != nil {
				return err
			}

			opts := a.cfg.RenderOptions()
			flags := cmd.Flags()
			if flags.Changed("scale") {
				opts.PixelsPerUnit, _ = flags.GetFloat64("scale")
			}
			if flags.Changed("axis-step") {
				opts.AxisStep, _ = flags.GetFloat64("axis-step")
			}
			if flags.Changed("no-labels") {
				off, _ := flags.GetBool("no-labels")
				opts.Labels = !off
			}
			if flags.Changed("no-legend") {
				off, _ := flags.GetBool("no-legend")
				opts.Legend = !off
			}
			opts.Title, _ = flags.GetString("title")
			if opts.Title == "" {
				opts.Title = l.Summary()
			}

			output, _ := flags.GetString("output")
			return withOutput(cmd, output, func(w io.Writer) error {
				return render.SVG(w, l, opts)
			})
		},
	}

	f := cmd.Flags()
	f.StringP("output", "o", "", "write the SVG to this file instead of stdout")
	f.Float64("scale", 0, "SVG pixels per layout unit (default from config)")
	f.Float64("axis-step", 0, "axis tick spacing in layout units, 0 hides the axes")
	f.Bool("no-labels", false, "omit opening and dimension labels")
	f.Bool("no-legend", false, "omit the block legend")
	f.String("title", "", "title drawn above the schematic (default: layout summary)")
	return cmd
}
