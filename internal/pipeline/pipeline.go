// Package pipeline runs the wall-plan analysis: load, preprocess, detect,
// select and map, or the manual entry path that skips all of them.
package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/wallplan/internal/blocks"
	"github.com/MeKo-Tech/wallplan/internal/common"
	"github.com/MeKo-Tech/wallplan/internal/detector"
	"github.com/MeKo-Tech/wallplan/internal/dimensions"
	"github.com/MeKo-Tech/wallplan/internal/errs"
	"github.com/MeKo-Tech/wallplan/internal/layout"
	"github.com/MeKo-Tech/wallplan/internal/loader"
	"github.com/MeKo-Tech/wallplan/internal/models"
	"github.com/MeKo-Tech/wallplan/internal/preprocess"
	"github.com/MeKo-Tech/wallplan/internal/render"
	"github.com/MeKo-Tech/wallplan/internal/selector"
	"github.com/MeKo-Tech/wallplan/internal/utils"
)

// BlocksConfig controls the optional block partition.
type BlocksConfig struct {
	Enabled bool        `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Spec    blocks.Spec `mapstructure:",squash" yaml:",inline" json:"spec"`
}

// Config holds configuration for the analysis pipeline and its stages.
type Config struct {
	Loader        loader.Options
	Preprocess    preprocess.Config
	Detector      detector.Config
	Selector      selector.Config
	Blocks        BlocksConfig
	OCRDimensions bool // guess a calibration from dimension labels when none is given

	Parallel ParallelConfig
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Loader:     loader.DefaultOptions(),
		Preprocess: preprocess.DefaultConfig(),
		Detector:   detector.DefaultConfig(),
		Selector:   selector.DefaultConfig(),
		Blocks:     BlocksConfig{Spec: blocks.DefaultSpec()},
		Parallel:   DefaultParallelConfig(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// NewBuilderFromConfig starts from an existing configuration.
func NewBuilderFromConfig(cfg Config) *Builder { return &Builder{cfg: cfg} }

// WithDPI sets the PDF rasterization resolution.
func (b *Builder) WithDPI(dpi float64) *Builder {
	if dpi > 0 {
		b.cfg.Loader.DPI = dpi
	}
	return b
}

// WithMaxPixels caps the decoded raster size.
func (b *Builder) WithMaxPixels(n int) *Builder {
	if n > 0 {
		b.cfg.Loader.MaxPixels = n
	}
	return b
}

// WithPreprocess replaces the preprocessing configuration.
func (b *Builder) WithPreprocess(cfg preprocess.Config) *Builder {
	b.cfg.Preprocess = cfg
	return b
}

// WithDetectionMode selects contour, line or both.
func (b *Builder) WithDetectionMode(mode detector.Mode) *Builder {
	if mode != "" {
		b.cfg.Detector.Mode = mode
	}
	return b
}

// WithBackend selects the detector backend by name.
func (b *Builder) WithBackend(name string) *Builder {
	if name != "" {
		b.cfg.Detector.Backend = name
	}
	return b
}

// WithHoughSeed fixes the sampling seed of the line transform.
func (b *Builder) WithHoughSeed(seed int64) *Builder {
	b.cfg.Detector.Hough.Seed = seed
	return b
}

// WithSelector replaces the selection heuristics.
func (b *Builder) WithSelector(cfg selector.Config) *Builder {
	b.cfg.Selector = cfg
	return b
}

// WithBlocks enables the block partition for every analysis.
func (b *Builder) WithBlocks(enabled bool, spec blocks.Spec) *Builder {
	b.cfg.Blocks = BlocksConfig{Enabled: enabled, Spec: spec}
	return b
}

// WithOCRDimensions toggles calibration guessing from dimension labels.
func (b *Builder) WithOCRDimensions(enabled bool) *Builder {
	b.cfg.OCRDimensions = enabled
	return b
}

// WithParallelWorkers sets the number of parallel workers for batch processing.
func (b *Builder) WithParallelWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.Parallel.MaxWorkers = workers
	}
	return b
}

// WithProgressCallback sets the progress callback for batch processing.
func (b *Builder) WithProgressCallback(callback ProgressCallback) *Builder {
	b.cfg.Parallel.ProgressCallback = callback
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks every stage configuration.
func (b *Builder) Validate() error {
	if err := b.cfg.Preprocess.Validate(); err != nil {
		return errs.Wrap(errs.CodeInvalidInput, err, "invalid preprocessing configuration")
	}
	if err := b.cfg.Detector.Validate(); err != nil {
		return errs.Wrap(errs.CodeInvalidInput, err, "invalid detector configuration")
	}
	if err := b.cfg.Selector.Validate(); err != nil {
		return errs.Wrap(errs.CodeInvalidInput, err, "invalid selector configuration")
	}
	if b.cfg.Blocks.Enabled {
		if err := b.cfg.Blocks.Spec.Validate(); err != nil {
			return err
		}
	}
	if b.cfg.Loader.DPI <= 0 {
		return errs.New(errs.CodeInvalidInput, "loader DPI must be > 0")
	}
	return nil
}

// Pipeline runs analyses with a fixed configuration. It holds no per-call
// state and is safe for concurrent use.
type Pipeline struct {
	cfg      Config
	Detector *detector.Detector
}

// Build validates the configuration and initializes the stages.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	det, err := detector.NewDetector(b.cfg.Detector)
	if err != nil {
		return nil, fmt.Errorf("init detector: %w", err)
	}
	return &Pipeline{cfg: b.cfg, Detector: det}, nil
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Info returns a map with key pipeline properties.
func (p *Pipeline) Info() map[string]any {
	return map[string]any{
		"detector": map[string]any{
			"mode":     p.cfg.Detector.Mode,
			"backend":  p.cfg.Detector.Backend,
			"linked":   detector.AvailableBackends(),
			"hough":    p.cfg.Detector.Hough,
			"min_area": p.cfg.Detector.MinContourAreaFraction,
		},
		"preprocess":     p.cfg.Preprocess,
		"selector":       p.cfg.Selector,
		"blocks":         p.cfg.Blocks,
		"ocr_dimensions": p.cfg.OCRDimensions,
		"ocr_available":  dimensions.Available(),
		"ocr_tessdata":   models.TessdataDir("", models.DefaultLanguage),
		"dpi":            p.cfg.Loader.DPI,
		"max_workers":    p.cfg.Parallel.MaxWorkers,
	}
}

// run times one step, records it and reports it to the caller.
type run struct {
	ctx     context.Context
	in      *Input
	timings *Timings
}

func (r run) step(s Step, fn func() error) error {
	if err := r.ctx.Err(); err != nil {
		return err
	}
	t := common.NewNamedTimer(string(s))
	err := fn()
	d := t.Stop()
	r.timings.Steps = append(r.timings.Steps, StepTiming{Step: s, DurationNs: d.Nanoseconds()})
	slog.Debug("Pipeline step complete", "step", s, "duration", d, "error", err)
	if err == nil && r.in.Progress != nil {
		r.in.Progress(s, d)
	}
	return err
}

// ResolveMode returns the analysis path for in. Unknown mode names fall
// back to manual; the second value is false in that case.
func ResolveMode(in Input) (Mode, bool) {
	if in.Mode == "" {
		if in.Image != nil || len(in.Data) > 0 {
			return ModeAuto, true
		}
		return ModeManual, true
	}
	if m, ok := ParseMode(in.Mode); ok {
		return m, true
	}
	return ModeManual, false
}

// Analyze runs one analysis. Manual mode ignores any image; auto mode
// requires Image or Data. Cancellation of ctx is checked between steps.
func (p *Pipeline) Analyze(ctx context.Context, in Input) (*Result, error) {
	if p == nil || p.Detector == nil {
		return nil, errs.New(errs.CodeInternal, "pipeline not initialized")
	}
	total := common.NewTimer()

	mode, known := ResolveMode(in)
	res := &Result{Mode: mode}
	if !known {
		slog.Warn("Unknown analysis mode, falling back to manual", "mode", in.Mode)
		res.Warnings = append(res.Warnings, fmt.Sprintf("unknown mode %q, using manual input", in.Mode))
	}

	r := run{ctx: ctx, in: &in, timings: &res.Timings}
	var err error
	if mode == ModeManual {
		err = p.analyzeManual(r, res)
	} else {
		err = p.analyzeAuto(r, res)
	}
	if err != nil {
		return nil, err
	}

	if in.Blocks || p.cfg.Blocks.Enabled {
		err = r.step(StepBlocks, func() error {
			pieces, err := blocks.Partition(res.Layout, p.cfg.Blocks.Spec)
			if err != nil {
				return err
			}
			res.Layout = res.Layout.WithBlocks(pieces)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	res.Timings.TotalNs = total.Stop().Nanoseconds()
	slog.Info("Analysis complete",
		"mode", res.Mode,
		"source", res.Layout.Source,
		"openings", len(res.Layout.Openings),
		"blocks", len(res.Layout.Blocks),
		"calibrated", res.Layout.Scale.Calibrated(),
		"duration", time.Duration(res.Timings.TotalNs))
	return res, nil
}

func (p *Pipeline) analyzeManual(r run, res *Result) error {
	if r.in.Manual == nil {
		return errs.New(errs.CodeInvalidInput, "manual mode requires wall dimensions")
	}
	return r.step(StepManual, func() error {
		l, err := layout.FromManual(*r.in.Manual)
		res.Layout = l
		return err
	})
}

func (p *Pipeline) analyzeAuto(r run, res *Result) error {
	in := r.in
	img := in.Image
	if img == nil {
		if len(in.Data) == 0 {
			return errs.New(errs.CodeInvalidInput, "auto mode requires an image")
		}
		err := r.step(StepLoad, func() error {
			var err error
			img, err = loader.Load(r.ctx, in.Data, in.MIMEType, p.cfg.Loader)
			return err
		})
		if err != nil {
			return err
		}
	}
	res.Image = img
	res.Width, res.Height = img.Bounds().Dx(), img.Bounds().Dy()

	var trace *Trace
	if in.Debug {
		trace = NewTrace()
		res.Trace = trace
	}

	var pre *preprocess.Result
	err := r.step(StepPreprocess, func() error {
		var err error
		pre, err = preprocess.Run(img, p.cfg.Preprocess)
		return err
	})
	if err != nil {
		return err
	}
	if trace != nil {
		trace.Add(StageGray, pre.Gray)
		trace.Add(StageBlur, pre.Blurred)
		trace.Add(StageNormalized, pre.Normalized)
		trace.Add(StageBinary, pre.Binary)
		trace.Add(StageClosed, pre.Closed)
	}

	var f *detector.Features
	err = r.step(StepDetect, func() error {
		var err error
		f, err = p.Detector.Detect(pre.Closed)
		return err
	})
	if err != nil {
		return err
	}
	res.Backend = f.Backend
	if trace != nil {
		if f.Edges != nil {
			trace.Add(StageEdges, f.Edges)
		}
		trace.Add(StageContours, DrawContours(pre.Closed, f.Hierarchy))
	}

	var sel *selector.Selection
	err = r.step(StepSelect, func() error {
		var err error
		sel, err = selector.Select(f, pre.Closed.Bounds(), p.cfg.Selector)
		return err
	})
	if trace != nil && sel != nil {
		trace.Add(StageResult, render.Overlay(img, sel))
	}
	if err != nil {
		return err
	}
	res.Selection = sel
	if sel.Approximate {
		res.Warnings = append(res.Warnings, "wall height estimated from a single baseline")
	}

	cal := in.Calibration
	if cal == nil && p.cfg.OCRDimensions {
		_ = r.step(StepCalibrate, func() error {
			guessed, err := p.guessCalibration(img, in)
			if err != nil {
				slog.Warn("Dimension scraping failed, output stays in pixels", "error", err)
				res.Warnings = append(res.Warnings, "no dimensions found: "+errs.UserMessage(err))
				return nil
			}
			cal = guessed
			return nil
		})
	}

	return r.step(StepMap, func() error {
		l, err := layout.MapSelection(sel.Geometry(), cal)
		res.Layout = l
		return err
	})
}

// guessCalibration proposes a wall size from dimension labels: vector text
// for PDFs, OCR otherwise.
func (p *Pipeline) guessCalibration(img image.Image, in *Input) (*layout.Calibration, error) {
	var (
		values []float64
		err    error
	)
	if len(in.Data) > 0 && loader.ResolveMIME(in.Data, in.MIMEType) == utils.MIMEPDF {
		values, err = dimensions.ScrapePDF(in.Data)
	}
	if len(values) < 2 {
		values, err = dimensions.Scrape(img)
	}
	if err != nil {
		return nil, err
	}
	cal, ok := dimensions.Guess(values)
	if !ok {
		return nil, errs.New(errs.CodeInvalidDimensions, "no width/height pair among %d values", len(values))
	}
	slog.Info("Calibration guessed from dimension labels", "width", cal.Width, "height", cal.Height)
	return &cal, nil
}
