package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/wallplan/internal/blocks"
	"github.com/MeKo-Tech/wallplan/internal/detector"
	"github.com/MeKo-Tech/wallplan/internal/estimate"
	"github.com/MeKo-Tech/wallplan/internal/layout"
	"github.com/MeKo-Tech/wallplan/internal/loader"
	"github.com/MeKo-Tech/wallplan/internal/pipeline"
	"github.com/MeKo-Tech/wallplan/internal/preprocess"
	"github.com/MeKo-Tech/wallplan/internal/render"
	"github.com/MeKo-Tech/wallplan/internal/selector"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
	validLanguages  = []string{"en", "sr"}
	validFormats    = []string{"json", "yaml", "text", "csv", "svg"}
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	lo := loader.DefaultOptions()
	ro := render.DefaultOptions()
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Language:  "en",
		Pipeline: PipelineConfig{
			Loader:     LoaderConfig{DPI: lo.DPI, MaxPixels: lo.MaxPixels},
			Preprocess: preprocess.DefaultConfig(),
			Detector:   detector.DefaultConfig(),
			Selector:   selector.DefaultConfig(),
			Parallel:   ParallelConfig{MaxWorkers: pipeline.DefaultParallelConfig().MaxWorkers},
		},
		Output: OutputConfig{
			Format:        "json",
			PixelsPerUnit: ro.PixelsPerUnit,
			Margin:        ro.Margin,
			AxisStep:      ro.AxisStep,
			Labels:        ro.Labels,
			Legend:        ro.Legend,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			OverlayEnabled:  true,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				RequestsPerDay:    5000,
				MaxUploadMBPerDay: 500,
			},
		},
		Blocks: BlocksConfig{
			BlocksConfig: pipeline.BlocksConfig{Spec: blocks.DefaultSpec()},
			Estimate:     estimate.DefaultOptions(),
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.LogFormat != "" && !slices.Contains(validLogFormats, c.LogFormat) {
		return fmt.Errorf("invalid log format: %s (must be one of: %s)", c.LogFormat, strings.Join(validLogFormats, ", "))
	}
	if c.Language != "" && !slices.Contains(validLanguages, strings.ToLower(c.Language)) {
		return fmt.Errorf("invalid language: %s (must be one of: %s)", c.Language, strings.Join(validLanguages, ", "))
	}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}
	if c.Output.PixelsPerUnit < 0 || c.Output.Margin < 0 || c.Output.AxisStep < 0 {
		return errors.New("invalid svg options: pixels per unit, margin and axis step must not be negative")
	}

	if c.Pipeline.Loader.DPI <= 0 {
		return fmt.Errorf("invalid loader dpi: %v (must be positive)", c.Pipeline.Loader.DPI)
	}
	if c.Pipeline.Loader.MaxPixels < 0 {
		return fmt.Errorf("invalid loader max pixels: %d (must not be negative)", c.Pipeline.Loader.MaxPixels)
	}
	if err := c.Pipeline.Preprocess.Validate(); err != nil {
		return fmt.Errorf("invalid pipeline.preprocess: %w", err)
	}
	if err := c.Pipeline.Detector.Validate(); err != nil {
		return fmt.Errorf("invalid pipeline.detector: %w", err)
	}
	if err := c.Pipeline.Selector.Validate(); err != nil {
		return fmt.Errorf("invalid pipeline.selector: %w", err)
	}
	if c.Pipeline.Parallel.MaxWorkers <= 0 {
		return fmt.Errorf("invalid parallel max workers: %d (must be positive)", c.Pipeline.Parallel.MaxWorkers)
	}

	cal := c.Calibration
	if cal.Width < 0 || cal.Height < 0 || (cal.Width == 0) != (cal.Height == 0) {
		return fmt.Errorf("invalid calibration %gx%g (set both width and height, or neither)", cal.Width, cal.Height)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if rl := c.Server.RateLimit; rl.Enabled && (rl.RequestsPerMinute <= 0 || rl.RequestsPerHour <= 0) {
		return errors.New("invalid rate limit: requests per minute and hour must be positive when enabled")
	}

	if err := c.Blocks.Spec.Validate(); err != nil {
		return fmt.Errorf("invalid blocks: %w", err)
	}
	if c.Blocks.Estimate.JointThickness < 0 || c.Blocks.Estimate.Depth < 0 {
		return errors.New("invalid estimate options: joint thickness and depth must not be negative")
	}
	return nil
}

// ToPipelineConfig converts the config to the internal pipeline configuration format.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		Loader: loader.Options{
			DPI:       c.Pipeline.Loader.DPI,
			MaxPixels: c.Pipeline.Loader.MaxPixels,
		},
		Preprocess:    c.Pipeline.Preprocess,
		Detector:      c.Pipeline.Detector,
		Selector:      c.Pipeline.Selector,
		Blocks:        c.Blocks.BlocksConfig,
		OCRDimensions: c.OCR.Dimensions,
		Parallel:      pipeline.ParallelConfig{MaxWorkers: c.Pipeline.Parallel.MaxWorkers},
	}
}

// CalibrationOrNil returns the configured wall size, or nil for pixel output.
func (c *Config) CalibrationOrNil() *layout.Calibration {
	if c.Calibration.Width <= 0 || c.Calibration.Height <= 0 {
		return nil
	}
	return &layout.Calibration{Width: c.Calibration.Width, Height: c.Calibration.Height}
}

// RenderOptions converts the output settings for the SVG renderer.
func (c *Config) RenderOptions() render.Options {
	opts := render.DefaultOptions()
	if c.Output.PixelsPerUnit > 0 {
		opts.PixelsPerUnit = c.Output.PixelsPerUnit
	}
	if c.Output.Margin > 0 {
		opts.Margin = c.Output.Margin
	}
	if c.Output.AxisStep > 0 {
		opts.AxisStep = c.Output.AxisStep
	}
	opts.Labels = c.Output.Labels
	opts.Legend = c.Output.Legend
	return opts
}

// Catalog loads the configured block catalog, or the built-in one.
func (c *Config) Catalog() (estimate.Catalog, error) {
	if c.Blocks.Catalog == "" {
		return estimate.DefaultCatalog(), nil
	}
	return estimate.LoadCatalog(c.Blocks.Catalog)
}
