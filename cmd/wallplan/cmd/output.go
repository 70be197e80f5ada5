package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/layout"
	"github.com/MeKo-Tech/wallplan/internal/pipeline"
	"github.com/MeKo-Tech/wallplan/internal/render"
)

const formatSVG = "svg"

// withOutput runs write against stdout, or against path when one is given.
func withOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(cmd.OutOrStdout())
	}
	f, err := os.Create(path) //nolint:gosec // G304: output path is chosen by the user
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// writeResult serializes res as json, yaml, text, csv or an SVG schematic.
func (a *app) writeResult(w io.Writer, res *pipeline.Result, format string) error {
	if strings.EqualFold(format, formatSVG) {
		return a.writeSVG(w, res.Layout)
	}
	f, err := pipeline.ParseFormat(format)
	if err != nil {
		return errs.Wrap(errs.CodeInvalidInput, err, "invalid --format")
	}
	return pipeline.Write(w, res, f, a.lang())
}

func (a *app) writeSVG(w io.Writer, l *layout.Layout) error {
	opts := a.cfg.RenderOptions()
	if opts.Title == "" {
		opts.Title = l.Summary()
	}
	return render.SVG(w, l, opts)
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: input path is chosen by the user
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalidInput, err, "cannot read %s", path)
	}
	return data, nil
}

// calibrationFlags reads --width/--height, falling back to the configured
// wall size. Setting only one of them is an error.
func (a *app) calibrationFlags(cmd *cobra.Command) (*layout.Calibration, error) {
	w, _ := cmd.Flags().GetFloat64("width")
	h, _ := cmd.Flags().GetFloat64("height")
	if !cmd.Flags().Changed("width") && !cmd.Flags().Changed("height") {
		return a.cfg.CalibrationOrNil(), nil
	}
	if w <= 0 || h <= 0 {
		return nil, errs.New(errs.CodeInvalidDimensions,
			"--width and --height must both be given and positive, got %g x %g", w, h)
	}
	return &layout.Calibration{Width: w, Height: h}, nil
}

// decodeLayoutDoc accepts a bare layout or a full analysis result and
// returns its layout.
func decodeLayoutDoc(data []byte) (*layout.Layout, error) {
	var doc struct {
		Layout yaml.Node `yaml:"layout"`
	}
	if err := yaml.Unmarshal(data, &doc); err == nil && doc.Layout.Kind != 0 {
		inner, err := yaml.Marshal(&doc.Layout)
		if err != nil {
			return nil, errs.Wrap(errs.CodeInvalidInput, err, "cannot read layout")
		}
		data = inner
	}
	return layout.DecodeLayout(data)
}
