package cmd

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/wallplan/internal/layout"
	"github.com/MeKo-Tech/wallplan/internal/pipeline"
)

func newManualCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "manual",
		Short: "Build a layout from hand-entered wall and opening sizes",
		Long: `Build a layout from a wall size in centimetres and its openings. Openings are
given as x,y,w,h with an optional type (window, door or opening), measured from
the wall's bottom-left corner. A JSON or YAML document can be read with --input;
flags override its wall size and add openings.

Examples:
  wallplan manual --width 600 --height 300 --opening 50,0,100,210,door
  wallplan manual --input wall.yaml --blocks --format svg -o wall.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runManual(cmd)
		},
	}

	f := cmd.Flags()
	f.Float64("width", 0, "wall width in cm")
	f.Float64("height", 0, "wall height in cm")
	f.StringArray("opening", nil, "opening as x,y,w,h[,type] (repeatable)")
	f.StringP("input", "i", "", "read the wall from a JSON or YAML file (- for stdin)")
	f.Bool("blocks", false, "partition the wall into block courses")
	f.StringP("format", "f", "", "output format: json, yaml, text, csv or svg (default from config)")
	f.StringP("output", "o", "", "write the result to this file instead of stdout")
	return cmd
}

func (a *app) runManual(cmd *cobra.Command) error {
	in, err := manualInput(cmd)
	if err != nil {
		return err
	}

	pl, err := a.buildPipeline(cmd)
	if err != nil {
		return err
	}
	blocksOn, _ := cmd.Flags().GetBool("blocks")
	res, err := pl.Analyze(cmd.Context(), pipeline.Input{
		Mode:     string(pipeline.ModeManual),
		Manual:   &in,
		Blocks:   blocksOn,
		Progress: pipeline.LogSteps(slog.Default()),
	})
	if err != nil {
		return err
	}

	format := a.cfg.Output.Format
	if cmd.Flags().Changed("format") {
		format, _ = cmd.Flags().GetString("format")
	}
	output, _ := cmd.Flags().GetString("output")
	if err := withOutput(cmd, output, func(w io.Writer) error {
		return a.writeResult(w, res, format)
	}); err != nil {
		return err
	}
	if output != "" {
		printResultSummary(cmd.ErrOrStderr(), "manual", res, a.lang())
		printSuccess(cmd.ErrOrStderr(), "Wrote %s", output)
	}
	return nil
}

// manualInput merges --input with the size and opening flags.
func manualInput(cmd *cobra.Command) (layout.ManualInput, error) {
	var in layout.ManualInput
	if path, _ := cmd.Flags().GetString("input"); path != "" {
		data, err := readInput(cmd, path)
		if err != nil {
			return in, err
		}
		if in, err = layout.DecodeManualInput(data); err != nil {
			return in, err
		}
	}
	if cmd.Flags().Changed("width") {
		in.Width, _ = cmd.Flags().GetFloat64("width")
	}
	if cmd.Flags().Changed("height") {
		in.Height, _ = cmd.Flags().GetFloat64("height")
	}
	specs, _ := cmd.Flags().GetStringArray("opening")
	for _, s := range specs {
		r, err := layout.ParseRect(s)
		if err != nil {
			return in, err
		}
		in.Openings = append(in.Openings, r)
	}
	return in, nil
}
