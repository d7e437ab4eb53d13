package preprocess

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/plotmeter/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.SearchWindow = 7
	cfg.TemplateWindow = 3
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.InDelta(t, 10.0, cfg.DenoiseStrength, 1e-12)
	assert.Equal(t, 7, cfg.TemplateWindow)
	assert.Equal(t, 21, cfg.SearchWindow)
	assert.InDelta(t, 2.0, cfg.ClaheClip, 1e-12)
	assert.Equal(t, 8, cfg.ClaheTiles)
	assert.Equal(t, 11, cfg.ThresholdBlock)
	assert.InDelta(t, 2.0, cfg.ThresholdC, 1e-12)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative strength", func(c *Config) { c.DenoiseStrength = -1 }},
		{"even template", func(c *Config) { c.TemplateWindow = 4 }},
		{"search smaller than template", func(c *Config) { c.SearchWindow = 5 }},
		{"negative clip", func(c *Config) { c.ClaheClip = -0.5 }},
		{"zero tiles", func(c *Config) { c.ClaheTiles = 0 }},
		{"even block", func(c *Config) { c.ThresholdBlock = 10 }},
		{"tiny block", func(c *Config) { c.ThresholdBlock = 1 }},
		{"negative max dimension", func(c *Config) { c.MaxDimension = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
			_, err := New(cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestProcessRejectsInvalidImages(t *testing.T) {
	p, err := New(smallConfig(), nil)
	require.NoError(t, err)

	_, err = p.Process(nil)
	var iie *InvalidImageError
	require.True(t, errors.As(err, &iie))
	assert.Contains(t, err.Error(), "nil")

	_, err = p.Process(image.NewRGBA(image.Rect(0, 0, 0, 10)))
	require.ErrorAs(t, err, &iie)
	assert.Contains(t, iie.Reason, "zero dimensions")
}

func TestDecode(t *testing.T) {
	img, err := Decode(testutil.PNGBytes(t, testutil.Canvas(6, 5, testutil.White)))
	require.NoError(t, err)
	assert.Equal(t, 6, img.Bounds().Dx())

	_, err = Decode([]byte{0x89, 0x50, 0x4e, 0x47, 0x00})
	var iie *InvalidImageError
	require.ErrorAs(t, err, &iie)
	assert.NotNil(t, errors.Unwrap(err))

	_, err = Decode(nil)
	require.ErrorAs(t, err, &iie)
}

func TestProcessProducesIndependentBuffers(t *testing.T) {
	img := testutil.SquarePlot(64, 64, image.Rect(10, 10, 50, 50))
	before := make([]uint8, len(img.Pix))
	copy(before, img.Pix)

	p, err := New(smallConfig(), nil)
	require.NoError(t, err)
	res, err := p.Process(img)
	require.NoError(t, err)

	assert.Equal(t, before, img.Pix, "input must not be modified")
	assert.InDelta(t, 1.0, res.Scale, 1e-12)
	assert.Same(t, img, res.Source)

	require.NotNil(t, res.Gray)
	require.NotNil(t, res.Denoised)
	require.NotNil(t, res.Enhanced)
	require.NotNil(t, res.Binary)
	assert.NotSame(t, &res.Gray.Pix[0], &res.Denoised.Pix[0])
	assert.NotSame(t, &res.Denoised.Pix[0], &res.Enhanced.Pix[0])
	assert.Equal(t, 64, res.Binary.Width)

	// The stroke is dark relative to its surroundings and ends up in the mask.
	assert.True(t, res.Binary.At(11, 30))
	assert.False(t, res.Binary.At(30, 30))
}

func TestProcessDownscales(t *testing.T) {
	cfg := smallConfig()
	cfg.MaxDimension = 40
	p, err := New(cfg, nil)
	require.NoError(t, err)

	res, err := p.Process(testutil.Canvas(80, 60, testutil.White))
	require.NoError(t, err)
	assert.Equal(t, 40, res.Source.Bounds().Dx())
	assert.Equal(t, 30, res.Gray.Bounds().Dy())
	assert.InDelta(t, 0.5, res.Scale, 1e-12)
}

func TestPrepareOnlyDownscales(t *testing.T) {
	cfg := smallConfig()
	cfg.MaxDimension = 40
	p, err := New(cfg, nil)
	require.NoError(t, err)

	res, err := p.Prepare(testutil.Canvas(80, 60, testutil.White))
	require.NoError(t, err)
	assert.Equal(t, 40, res.Source.Bounds().Dx())
	assert.InDelta(t, 0.5, res.Scale, 1e-12)
	assert.Equal(t, cfg, res.Config)
	assert.Nil(t, res.Gray)
	assert.Nil(t, res.Enhanced)
	assert.Nil(t, res.Binary)

	_, err = p.Prepare(nil)
	var ie *InvalidImageError
	assert.ErrorAs(t, err, &ie)
}

func TestProcessWithStagesDisabled(t *testing.T) {
	cfg := smallConfig()
	cfg.DenoiseStrength = 0
	cfg.ClaheClip = 0
	p, err := New(cfg, nil)
	require.NoError(t, err)

	gray := image.NewGray(image.Rect(0, 0, 5, 5))
	gray.SetGray(2, 2, color.Gray{Y: 99})
	res, err := p.Process(gray)
	require.NoError(t, err)
	assert.Equal(t, gray.Pix, res.Gray.Pix)
	assert.Equal(t, gray.Pix, res.Denoised.Pix)
	assert.Equal(t, gray.Pix, res.Enhanced.Pix)
}
