package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/wallplan/internal/batch"
	"github.com/MeKo-Tech/wallplan/internal/detector"
	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/pipeline"
	"github.com/MeKo-Tech/wallplan/internal/render"
	"github.com/MeKo-Tech/wallplan/internal/utils"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <file|dir>...",
		Short: "Detect the wall and its openings in a drawing",
		Long: `Analyze one or more wall drawings. Without --width and --height the layout
stays in pixels with the origin at the wall's top-left corner; with them it is
scaled to centimetres with the origin at the bottom-left corner.

Examples:
  wallplan analyze plan.png
  wallplan analyze plan.pdf --width 560 --height 320 --format text
  wallplan analyze plan.png --blocks --format svg -o wall.svg
  wallplan analyze plan.png --debug-dir debug/ --overlay detected.png
  wallplan analyze plans/*.png --workers 4
  wallplan analyze plans/ --recursive --exclude "*draft*" -f csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd, args)
		},
	}

	f := cmd.Flags()
	f.String("mode", "auto", "analysis mode (auto, manual or an alias)")
	f.String("detect", "", "feature detection: contour, line or both (default from config)")
	f.String("backend", "", "detector backend: native or opencv (default from config)")
	f.Float64("width", 0, "physical wall width in cm")
	f.Float64("height", 0, "physical wall height in cm")
	f.String("debug-dir", "", "write every intermediate stage as PNG into this directory")
	f.StringP("format", "f", "", "output format: json, yaml, text, csv or svg (default from config)")
	f.StringP("output", "o", "", "write the result to this file instead of stdout")
	f.String("overlay", "", "write the detection overlay PNG to this file")
	f.Bool("blocks", false, "partition the wall into block courses")
	f.Bool("ocr-dimensions", false, "read the wall size from dimension labels when not given")
	f.Int("workers", 0, "parallel workers for several files (default from config)")
	f.BoolP("recursive", "r", false, "descend into subdirectories of directory arguments")
	f.StringSlice("include", nil, "only analyze files in directories whose name matches these globs")
	f.StringSlice("exclude", nil, "skip files whose name matches these globs")
	return cmd
}

func (a *app) runAnalyze(cmd *cobra.Command, args []string) error {
	pl, err := a.buildPipeline(cmd)
	if err != nil {
		return err
	}
	cal, err := a.calibrationFlags(cmd)
	if err != nil {
		return err
	}

	mode, _ := cmd.Flags().GetString("mode")
	debugDir, _ := cmd.Flags().GetString("debug-dir")
	blocksOn, _ := cmd.Flags().GetBool("blocks")
	format := a.cfg.Output.Format
	if cmd.Flags().Changed("format") {
		format, _ = cmd.Flags().GetString("format")
	}
	output, _ := cmd.Flags().GetString("output")
	overlay, _ := cmd.Flags().GetString("overlay")

	files, err := discoverInputs(cmd, args)
	if err != nil {
		return err
	}

	inputs := make([]pipeline.Input, len(files))
	for i, path := range files {
		data, err := readInput(cmd, path)
		if err != nil {
			return err
		}
		inputs[i] = pipeline.Input{
			Mode:        mode,
			Data:        data,
			MIMEType:    utils.MIMEFromPath(path),
			Calibration: cal,
			Debug:       debugDir != "",
			Blocks:      blocksOn,
			Progress:    pipeline.LogSteps(slog.Default()),
		}
	}

	if len(files) > 1 {
		return a.runAnalyzeBatch(cmd, pl, files, inputs, format, output)
	}

	res, err := pl.Analyze(cmd.Context(), inputs[0])
	if err != nil {
		return err
	}
	if debugDir != "" && res.Trace != nil {
		paths, err := res.Trace.Save(debugDir)
		if err != nil {
			return fmt.Errorf("failed to save debug stages: %w", err)
		}
		slog.Info("Saved debug stages", "dir", debugDir, "count", len(paths))
	}
	if overlay != "" {
		if res.Selection == nil {
			return errs.New(errs.CodeInvalidInput, "--overlay needs an image analysis")
		}
		if err := utils.SavePNG(overlay, render.Overlay(res.Image, res.Selection)); err != nil {
			return err
		}
	}

	if err := withOutput(cmd, output, func(w io.Writer) error {
		return a.writeResult(w, res, format)
	}); err != nil {
		return err
	}
	if output != "" {
		printResultSummary(cmd.ErrOrStderr(), filepath.Base(files[0]), res, a.lang())
		printSuccess(cmd.ErrOrStderr(), "Wrote %s", output)
	}
	return nil
}

// runAnalyzeBatch analyzes several files on the worker pool. Successful
// results are written even when some files fail.
func (a *app) runAnalyzeBatch(cmd *cobra.Command, pl *pipeline.Pipeline, names []string,
	inputs []pipeline.Input, format, output string,
) error {
	f, err := pipeline.ParseFormat(format)
	if err != nil {
		return errs.New(errs.CodeInvalidInput, "format %q is not available for several files (use json, yaml, text or csv)", format)
	}

	workers := a.cfg.Pipeline.Parallel.MaxWorkers
	if cmd.Flags().Changed("workers") {
		workers, _ = cmd.Flags().GetInt("workers")
	}
	stderr := cmd.ErrOrStderr()
	var failed []string
	cfg := pipeline.ParallelConfig{
		MaxWorkers:       workers,
		ProgressCallback: pipeline.NewConsoleProgressCallback(stderr, "analyze: "),
		ErrorHandler: func(i int, _ pipeline.Input, err error) {
			failed = append(failed, names[i])
		},
	}

	start := time.Now()
	results, batchErr := pl.AnalyzeBatch(cmd.Context(), inputs, cfg)
	if results == nil {
		return batchErr
	}
	stats := pipeline.CalculateBatchStats(results, time.Since(start), min(workers, len(inputs)))
	slog.Info("Batch complete", "succeeded", stats.Succeeded, "failed", stats.Failed,
		"throughput_per_sec", stats.ThroughputPerSec)
	for _, name := range failed {
		printWarning(stderr, "skipped %s", name)
	}

	err = withOutput(cmd, output, func(w io.Writer) error {
		return batch.Write(w, names, results, f, a.lang())
	})
	return errors.Join(err, batchErr)
}

// discoverInputs expands directory arguments with the discovery flags.
func discoverInputs(cmd *cobra.Command, args []string) ([]string, error) {
	flags := cmd.Flags()
	var opts batch.Options
	opts.Recursive, _ = flags.GetBool("recursive")
	opts.Include, _ = flags.GetStringSlice("include")
	opts.Exclude, _ = flags.GetStringSlice("exclude")
	return batch.Discover(args, opts)
}

// buildPipeline applies the analysis flags to the configured pipeline.
func (a *app) buildPipeline(cmd *cobra.Command) (*pipeline.Pipeline, error) {
	cfg := a.cfg.ToPipelineConfig()
	flags := cmd.Flags()
	if flags.Changed("detect") {
		mode, _ := flags.GetString("detect")
		cfg.Detector.Mode = detector.Mode(strings.ToLower(mode))
	}
	if flags.Changed("backend") {
		cfg.Detector.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("ocr-dimensions") {
		cfg.OCRDimensions, _ = flags.GetBool("ocr-dimensions")
	}
	return pipeline.NewBuilderFromConfig(cfg).Build()
}
