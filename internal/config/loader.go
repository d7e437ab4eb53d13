package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "plotmeter"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "PLOTMETER"
)

// Loader reads configuration from files, environment variables and bound
// flags, in increasing order of precedence.
type Loader struct {
	v *viper.Viper
}

// NewLoader uses the global viper instance so cobra flag bindings apply.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper()}
}

// NewLoaderWithViper wraps a caller-owned viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v}
}

// Load searches the standard paths for plotmeter.yaml and validates the
// result. A missing file is not an error.
func (l *Loader) Load() (*Config, error) {
	return l.load("", true)
}

// LoadWithFile loads a specific file, falling back to Load for "".
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	return l.load(configFile, true)
}

// LoadWithoutValidation is Load for commands that must work with a broken
// configuration, such as printing it.
func (l *Loader) LoadWithoutValidation(configFile string) (*Config, error) {
	return l.load(configFile, false)
}

func (l *Loader) load(configFile string, validate bool) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		for _, p := range GetConfigSearchPaths() {
			l.v.AddConfigPath(p)
		}
	}

	l.setupEnvironmentVariables()
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}
	return &cfg, nil
}

// GetConfigFileUsed returns the path of the config file used, if any.
func (l *Loader) GetConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper {
	return l.v
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.AutomaticEnv()
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

// setDefaults registers every key so AutomaticEnv can resolve nested keys
// that are absent from the file.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	l.v.SetDefault("detector.min_area", d.Detector.MinArea)
	l.v.SetDefault("detector.canny_low", d.Detector.CannyLow)
	l.v.SetDefault("detector.canny_high", d.Detector.CannyHigh)
	l.v.SetDefault("detector.kernel_size", d.Detector.KernelSize)
	l.v.SetDefault("detector.dilate_iterations", d.Detector.DilateIterations)
	l.v.SetDefault("detector.close_iterations", d.Detector.CloseIterations)
	l.v.SetDefault("detector.marker_colors", d.Detector.MarkerColors)
	l.v.SetDefault("detector.use_edges", d.Detector.UseEdges)
	l.v.SetDefault("detector.use_colors", d.Detector.UseColors)
	l.v.SetDefault("detector.use_threshold", d.Detector.UseThreshold)
	l.v.SetDefault("detector.backend", d.Detector.Backend)

	l.v.SetDefault("preprocess.denoise_strength", d.Preprocess.DenoiseStrength)
	l.v.SetDefault("preprocess.template_window", d.Preprocess.TemplateWindow)
	l.v.SetDefault("preprocess.search_window", d.Preprocess.SearchWindow)
	l.v.SetDefault("preprocess.clahe_clip", d.Preprocess.ClaheClip)
	l.v.SetDefault("preprocess.clahe_tiles", d.Preprocess.ClaheTiles)
	l.v.SetDefault("preprocess.threshold_block", d.Preprocess.ThresholdBlock)
	l.v.SetDefault("preprocess.threshold_c", d.Preprocess.ThresholdC)
	l.v.SetDefault("preprocess.max_dimension", d.Preprocess.MaxDimension)

	l.v.SetDefault("selector.close_epsilon", d.Selector.CloseEpsilon)
	l.v.SetDefault("selector.simplify_tolerance", d.Selector.SimplifyTolerance)

	l.v.SetDefault("output.format", d.Output.Format)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.rate_limit.enabled", d.Server.RateLimit.Enabled)
	l.v.SetDefault("server.rate_limit.requests_per_minute", d.Server.RateLimit.RequestsPerMinute)
	l.v.SetDefault("server.rate_limit.requests_per_hour", d.Server.RateLimit.RequestsPerHour)
	l.v.SetDefault("server.rate_limit.max_requests_per_day", d.Server.RateLimit.MaxRequestsPerDay)
	l.v.SetDefault("server.rate_limit.max_data_per_day", d.Server.RateLimit.MaxDataPerDay)
}

// GenerateDefaultConfigFile writes DefaultConfig as YAML. An empty filename
// writes plotmeter.yaml in the working directory.
func GenerateDefaultConfigFile(filename string) error {
	if filename == "" {
		filename = ConfigFileName + ".yaml"
	}
	cfg := DefaultConfig()
	data, err := cfg.YAML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return nil
}

// YAML renders the configuration in config file form.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}

// GetConfigSearchPaths returns the directories searched for plotmeter.yaml.
func GetConfigSearchPaths() []string {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	if dir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(dir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}

	return append(paths, "/etc/"+ConfigFileName)
}
