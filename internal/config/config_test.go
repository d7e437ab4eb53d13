package config

import (
	"testing"

	"github.com/MeKo-Tech/plotmeter/internal/detector"
	"github.com/MeKo-Tech/plotmeter/internal/measure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 50.0, cfg.Detector.MinArea, 0)
	assert.Equal(t, []string{"blue", "red", "green", "black"}, cfg.Detector.MarkerColors)
	assert.Equal(t, detector.BackendNative, cfg.Detector.Backend)
}

func TestDefaultConfigMatchesEngineDefaults(t *testing.T) {
	cfg := DefaultConfig()
	mc, err := cfg.ToMeasureConfig()
	require.NoError(t, err)
	assert.Equal(t, measure.DefaultConfig(), mc)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level"},
		{"format", func(c *Config) { c.Output.Format = "xml" }, "invalid output format"},
		{"marker color", func(c *Config) { c.Detector.MarkerColors = []string{"purple"} }, "detector"},
		{"backend", func(c *Config) { c.Detector.Backend = "cuda" }, "unknown detector backend"},
		{"no strategy", func(c *Config) {
			c.Detector.UseEdges, c.Detector.UseColors, c.Detector.UseThreshold = false, false, false
		}, "strategy"},
		{"negative epsilon", func(c *Config) { c.Selector.CloseEpsilon = -1 }, "selector"},
		{"port", func(c *Config) { c.Server.Port = 0 }, "port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max upload"},
		{"rate limit", func(c *Config) { c.Server.RateLimit.RequestsPerHour = -5 }, "rate limits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "loud"
	cfg.Server.Port = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log level")
	assert.Contains(t, err.Error(), "port")
}

func TestToMeasureConfigParsesColors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detector.MarkerColors = []string{" Red ", "BLUE"}

	mc, err := cfg.ToMeasureConfig()
	require.NoError(t, err)
	assert.Equal(t, []detector.MarkerColor{detector.MarkerRed, detector.MarkerBlue}, mc.Detector.MarkerColors)
}

func TestServerAddress(t *testing.T) {
	s := ServerConfig{Host: "0.0.0.0", Port: 9000}
	assert.Equal(t, "0.0.0.0:9000", s.Address())
}
