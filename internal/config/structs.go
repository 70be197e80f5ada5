//nolint:lll
package config

import (
	"github.com/MeKo-Tech/wallplan/internal/detector"
	"github.com/MeKo-Tech/wallplan/internal/estimate"
	"github.com/MeKo-Tech/wallplan/internal/pipeline"
	"github.com/MeKo-Tech/wallplan/internal/preprocess"
	"github.com/MeKo-Tech/wallplan/internal/selector"
)

// Config represents the complete configuration for the wallplan application.
// It includes settings for all commands (analyze, manual, estimate, render,
// serve) and supports loading from configuration files, environment
// variables, and command-line flags.
type Config struct {
	// Global settings
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format" json:"log_format"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`
	Language  string `mapstructure:"language" yaml:"language" json:"language"`

	// Analysis pipeline stages
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`

	// Physical wall size used to calibrate detected layouts
	Calibration CalibrationConfig `mapstructure:"calibration" yaml:"calibration" json:"calibration"`

	// Output configuration
	Output OutputConfig `mapstructure:"output" yaml:"output" json:"output"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Block partition and estimate
	Blocks BlocksConfig `mapstructure:"blocks" yaml:"blocks" json:"blocks"`

	// Dimension label scraping
	OCR OCRConfig `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
}

// PipelineConfig contains the analysis stage settings.
type PipelineConfig struct {
	Loader     LoaderConfig      `mapstructure:"loader" yaml:"loader" json:"loader"`
	Preprocess preprocess.Config `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	Detector   detector.Config   `mapstructure:"detector" yaml:"detector" json:"detector"`
	Selector   selector.Config   `mapstructure:"selector" yaml:"selector" json:"selector"`
	Parallel   ParallelConfig    `mapstructure:"parallel" yaml:"parallel" json:"parallel"`
}

// LoaderConfig contains input decoding settings.
type LoaderConfig struct {
	DPI       float64 `mapstructure:"dpi" yaml:"dpi" json:"dpi"`
	MaxPixels int     `mapstructure:"max_pixels" yaml:"max_pixels" json:"max_pixels"`
}

// ParallelConfig contains batch processing settings.
type ParallelConfig struct {
	MaxWorkers int `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers"`
}

// CalibrationConfig is the physical wall size in centimetres. Zero values
// leave detected layouts in pixels.
type CalibrationConfig struct {
	Width  float64 `mapstructure:"width" yaml:"width" json:"width"`
	Height float64 `mapstructure:"height" yaml:"height" json:"height"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format        string  `mapstructure:"format" yaml:"format" json:"format"`
	File          string  `mapstructure:"file" yaml:"file" json:"file"`
	DebugDir      string  `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
	OverlayFile   string  `mapstructure:"overlay_file" yaml:"overlay_file" json:"overlay_file"`
	PixelsPerUnit float64 `mapstructure:"pixels_per_unit" yaml:"pixels_per_unit" json:"pixels_per_unit"` // SVG canvas scale
	Margin        float64 `mapstructure:"margin" yaml:"margin" json:"margin"`
	AxisStep      float64 `mapstructure:"axis_step" yaml:"axis_step" json:"axis_step"`
	Labels        bool    `mapstructure:"labels" yaml:"labels" json:"labels"`
	Legend        bool    `mapstructure:"legend" yaml:"legend" json:"legend"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	OverlayEnabled  bool            `mapstructure:"overlay_enabled" yaml:"overlay_enabled" json:"overlay_enabled"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int  `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	RequestsPerDay    int  `mapstructure:"requests_per_day" yaml:"requests_per_day" json:"requests_per_day"`
	MaxUploadMBPerDay int  `mapstructure:"max_upload_mb_per_day" yaml:"max_upload_mb_per_day" json:"max_upload_mb_per_day"`
}

// BlocksConfig contains the block grid, the catalog file and estimate options.
type BlocksConfig struct {
	pipeline.BlocksConfig `mapstructure:",squash" yaml:",inline"`

	Catalog  string           `mapstructure:"catalog" yaml:"catalog" json:"catalog"` // TOML, YAML or JSON file; built-in types when empty
	Estimate estimate.Options `mapstructure:"estimate" yaml:"estimate" json:"estimate"`
}

// OCRConfig contains dimension scraping settings.
type OCRConfig struct {
	Dimensions bool `mapstructure:"dimensions" yaml:"dimensions" json:"dimensions"`
}
