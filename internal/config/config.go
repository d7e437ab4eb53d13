// Package config holds the plotmeter configuration tree, its defaults and
// validation, and the viper based loader used by the CLI.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/plotmeter/internal/detector"
	"github.com/MeKo-Tech/plotmeter/internal/measure"
	"github.com/MeKo-Tech/plotmeter/internal/preprocess"
	"github.com/MeKo-Tech/plotmeter/internal/selector"
)

// Config is the complete plotmeter configuration. It is populated from a
// config file, PLOTMETER_* environment variables and command-line flags.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Detector   DetectorConfig   `mapstructure:"detector" yaml:"detector" json:"detector"`
	Preprocess PreprocessConfig `mapstructure:"preprocess" yaml:"preprocess" json:"preprocess"`
	Selector   SelectorConfig   `mapstructure:"selector" yaml:"selector" json:"selector"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output" json:"output"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server" json:"server"`
}

// DetectorConfig contains boundary detection settings.
type DetectorConfig struct {
	MinArea          float64  `mapstructure:"min_area" yaml:"min_area" json:"min_area"`
	CannyLow         float64  `mapstructure:"canny_low" yaml:"canny_low" json:"canny_low"`
	CannyHigh        float64  `mapstructure:"canny_high" yaml:"canny_high" json:"canny_high"`
	KernelSize       int      `mapstructure:"kernel_size" yaml:"kernel_size" json:"kernel_size"`
	DilateIterations int      `mapstructure:"dilate_iterations" yaml:"dilate_iterations" json:"dilate_iterations"`
	CloseIterations  int      `mapstructure:"close_iterations" yaml:"close_iterations" json:"close_iterations"`
	MarkerColors     []string `mapstructure:"marker_colors" yaml:"marker_colors" json:"marker_colors"`
	UseEdges         bool     `mapstructure:"use_edges" yaml:"use_edges" json:"use_edges"`
	UseColors        bool     `mapstructure:"use_colors" yaml:"use_colors" json:"use_colors"`
	UseThreshold     bool     `mapstructure:"use_threshold" yaml:"use_threshold" json:"use_threshold"`
	Backend          string   `mapstructure:"backend" yaml:"backend" json:"backend"`
}

// PreprocessConfig contains image cleanup settings.
type PreprocessConfig struct {
	DenoiseStrength float64 `mapstructure:"denoise_strength" yaml:"denoise_strength" json:"denoise_strength"`
	TemplateWindow  int     `mapstructure:"template_window" yaml:"template_window" json:"template_window"`
	SearchWindow    int     `mapstructure:"search_window" yaml:"search_window" json:"search_window"`
	ClaheClip       float64 `mapstructure:"clahe_clip" yaml:"clahe_clip" json:"clahe_clip"`
	ClaheTiles      int     `mapstructure:"clahe_tiles" yaml:"clahe_tiles" json:"clahe_tiles"`
	ThresholdBlock  int     `mapstructure:"threshold_block" yaml:"threshold_block" json:"threshold_block"`
	ThresholdC      float64 `mapstructure:"threshold_c" yaml:"threshold_c" json:"threshold_c"`
	MaxDimension    int     `mapstructure:"max_dimension" yaml:"max_dimension" json:"max_dimension"`
}

// SelectorConfig contains boundary selection settings.
type SelectorConfig struct {
	CloseEpsilon      float64 `mapstructure:"close_epsilon" yaml:"close_epsilon" json:"close_epsilon"`
	SimplifyTolerance float64 `mapstructure:"simplify_tolerance" yaml:"simplify_tolerance" json:"simplify_tolerance"`
}

// OutputConfig contains output formatting settings.
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits. Zero disables a limit.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	RequestsPerHour   int   `mapstructure:"requests_per_hour" yaml:"requests_per_hour" json:"requests_per_hour"`
	MaxRequestsPerDay int   `mapstructure:"max_requests_per_day" yaml:"max_requests_per_day" json:"max_requests_per_day"`
	MaxDataPerDay     int64 `mapstructure:"max_data_per_day" yaml:"max_data_per_day" json:"max_data_per_day"`
}

var (
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validFormats   = []string{"json", "text", "yaml", "csv"}
)

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	pre := preprocess.DefaultConfig()
	sel := selector.DefaultOptions()

	colors := make([]string, len(det.MarkerColors))
	for i, c := range det.MarkerColors {
		colors[i] = string(c)
	}

	return Config{
		LogLevel: "info",
		Detector: DetectorConfig{
			MinArea:          det.MinArea,
			CannyLow:         det.CannyLow,
			CannyHigh:        det.CannyHigh,
			KernelSize:       det.KernelSize,
			DilateIterations: det.DilateIterations,
			CloseIterations:  det.CloseIterations,
			MarkerColors:     colors,
			UseEdges:         det.UseEdges,
			UseColors:        det.UseColors,
			UseThreshold:     det.UseThreshold,
			Backend:          det.Backend,
		},
		Preprocess: PreprocessConfig{
			DenoiseStrength: pre.DenoiseStrength,
			TemplateWindow:  pre.TemplateWindow,
			SearchWindow:    pre.SearchWindow,
			ClaheClip:       pre.ClaheClip,
			ClaheTiles:      pre.ClaheTiles,
			ThresholdBlock:  pre.ThresholdBlock,
			ThresholdC:      pre.ThresholdC,
			MaxDimension:    pre.MaxDimension,
		},
		Selector: SelectorConfig{
			CloseEpsilon:      sel.CloseEpsilon,
			SimplifyTolerance: sel.SimplifyTolerance,
		},
		Output: OutputConfig{Format: "json"},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				RequestsPerHour:   1000,
				MaxRequestsPerDay: 10000,
				MaxDataPerDay:     1 << 30,
			},
		},
	}
}

// Validate checks the configuration. Stage settings are validated by
// converting them and asking the stage.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("invalid log level %q (valid: %s)", c.LogLevel, strings.Join(validLogLevels, ", ")))
	}
	if !slices.Contains(validFormats, strings.ToLower(c.Output.Format)) {
		errs = append(errs, fmt.Errorf("invalid output format %q (valid: %s)", c.Output.Format, strings.Join(validFormats, ", ")))
	}

	mc, err := c.ToMeasureConfig()
	if err != nil {
		errs = append(errs, err)
	} else if err := mc.Validate(); err != nil {
		errs = append(errs, err)
	}

	if err := c.Server.validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s ServerConfig) validate() error {
	switch {
	case s.Port < 1 || s.Port > 65535:
		return fmt.Errorf("server port must be between 1 and 65535, got %d", s.Port)
	case s.MaxUploadMB <= 0:
		return fmt.Errorf("server max upload must be positive, got %d MB", s.MaxUploadMB)
	case s.TimeoutSec <= 0:
		return fmt.Errorf("server timeout must be positive, got %d", s.TimeoutSec)
	case s.ShutdownTimeout < 0:
		return fmt.Errorf("server shutdown timeout must not be negative, got %d", s.ShutdownTimeout)
	}
	rl := s.RateLimit
	if rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 || rl.MaxRequestsPerDay < 0 || rl.MaxDataPerDay < 0 {
		return errors.New("rate limits must not be negative")
	}
	return nil
}

// ToMeasureConfig converts the file-level settings into engine settings.
func (c *Config) ToMeasureConfig() (measure.Config, error) {
	colors, err := detector.ParseMarkerColors(c.Detector.MarkerColors)
	if err != nil {
		return measure.Config{}, fmt.Errorf("detector: %w", err)
	}
	return measure.Config{
		Preprocess: preprocess.Config{
			DenoiseStrength: c.Preprocess.DenoiseStrength,
			TemplateWindow:  c.Preprocess.TemplateWindow,
			SearchWindow:    c.Preprocess.SearchWindow,
			ClaheClip:       c.Preprocess.ClaheClip,
			ClaheTiles:      c.Preprocess.ClaheTiles,
			ThresholdBlock:  c.Preprocess.ThresholdBlock,
			ThresholdC:      c.Preprocess.ThresholdC,
			MaxDimension:    c.Preprocess.MaxDimension,
		},
		Detector: detector.Config{
			MinArea:          c.Detector.MinArea,
			CannyLow:         c.Detector.CannyLow,
			CannyHigh:        c.Detector.CannyHigh,
			KernelSize:       c.Detector.KernelSize,
			DilateIterations: c.Detector.DilateIterations,
			CloseIterations:  c.Detector.CloseIterations,
			MarkerColors:     colors,
			UseColors:        c.Detector.UseColors,
			UseEdges:         c.Detector.UseEdges,
			UseThreshold:     c.Detector.UseThreshold,
			Backend:          c.Detector.Backend,
		},
		Selector: selector.Options{
			CloseEpsilon:      c.Selector.CloseEpsilon,
			SimplifyTolerance: c.Selector.SimplifyTolerance,
		},
	}, nil
}

// Address returns host:port for the HTTP listener.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
