package detector

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/plotmeter/internal/preprocess"
	"github.com/MeKo-Tech/plotmeter/internal/testutil"
	"github.com/MeKo-Tech/plotmeter/internal/utils"
)

// fixedStrategy returns a prepared mask.
type fixedStrategy struct {
	name string
	mask *utils.Mask
	err  error
}

func (f fixedStrategy) Name() string { return f.name }

func (f fixedStrategy) Mask(Input) (*utils.Mask, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.mask.Clone(), nil
}

func preprocessed(t *testing.T, img image.Image) *preprocess.Result {
	t.Helper()
	cfg := preprocess.DefaultConfig()
	cfg.TemplateWindow = 3
	cfg.SearchWindow = 7
	p, err := preprocess.New(cfg, nil)
	require.NoError(t, err)
	res, err := p.Process(img)
	require.NoError(t, err)
	return res
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.InDelta(t, 50.0, cfg.MinArea, 0)
	assert.InDelta(t, 50.0, cfg.CannyLow, 0)
	assert.InDelta(t, 150.0, cfg.CannyHigh, 0)
	assert.Equal(t, 3, cfg.KernelSize)
	assert.Equal(t, 2, cfg.DilateIterations)
	assert.Equal(t, 3, cfg.CloseIterations)
	assert.Equal(t, BackendNative, cfg.Backend)
	assert.Len(t, cfg.MarkerColors, 4)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative min area", func(c *Config) { c.MinArea = -1 }},
		{"negative canny", func(c *Config) { c.CannyLow = -1 }},
		{"inverted canny", func(c *Config) { c.CannyLow, c.CannyHigh = 200, 100 }},
		{"zero kernel", func(c *Config) { c.KernelSize = 0 }},
		{"negative iterations", func(c *Config) { c.CloseIterations = -1 }},
		{"unknown marker", func(c *Config) { c.MarkerColors = []MarkerColor{"purple"} }},
		{"unknown backend", func(c *Config) { c.Backend = "cuda" }},
		{"no strategies", func(c *Config) { c.UseColors, c.UseEdges, c.UseThreshold = false, false, false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNew_StrategyOrder(t *testing.T) {
	d, err := New(DefaultConfig(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"color", "edges", "threshold"}, d.Strategies())

	cfg := DefaultConfig()
	cfg.UseColors = false
	d, err = New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"edges", "threshold"}, d.Strategies())
}

func TestNewWithStrategies_RequiresOne(t *testing.T) {
	_, err := NewWithStrategies(DefaultConfig(), nil)
	assert.Error(t, err)
}

func TestDetect_MissingInput(t *testing.T) {
	d, err := New(DefaultConfig(), nil)
	require.NoError(t, err)
	_, err = d.Detect(nil)
	var pe *ProcessingError
	assert.ErrorAs(t, err, &pe)
}

func TestDetect_SquarePlot(t *testing.T) {
	img := testutil.SquarePlot(160, 160, image.Rect(40, 40, 120, 120))
	d, err := New(DefaultConfig(), nil)
	require.NoError(t, err)

	det, err := d.Detect(preprocessed(t, img))
	require.NoError(t, err)
	require.NotEmpty(t, det.Candidates)

	largest := det.Candidates[0]
	for _, c := range det.Candidates {
		if c.Area > largest.Area {
			largest = c
		}
	}
	// Outer edge of the 3px stroke grown by two dilation passes.
	assert.InDelta(t, 83.0*83.0, largest.Area, 900)
	assert.Positive(t, det.MaskPixels["color"])
	assert.Positive(t, det.MaskPixels["combined"])
	assert.Equal(t, 160, det.Width)
}

func TestDetect_BlankImage(t *testing.T) {
	img := testutil.Canvas(64, 64, testutil.White)
	d, err := New(DefaultConfig(), nil)
	require.NoError(t, err)

	det, err := d.Detect(preprocessed(t, img))
	require.NoError(t, err)
	assert.Empty(t, det.Candidates)
	assert.Zero(t, det.MaskPixels["combined"])
}

func TestDetect_UnionOfStrategies(t *testing.T) {
	a := utils.NewMask(60, 60)
	fillMask(a, 5, 5, 20, 20)
	b := utils.NewMask(60, 60)
	fillMask(b, 35, 35, 50, 50)

	cfg := DefaultConfig()
	cfg.DilateIterations, cfg.CloseIterations = 0, 0
	d, err := NewWithStrategies(cfg, nil, fixedStrategy{name: "a", mask: a}, fixedStrategy{name: "b", mask: b})
	require.NoError(t, err)

	pre := &preprocess.Result{Enhanced: image.NewGray(image.Rect(0, 0, 60, 60))}
	det, err := d.Detect(pre)
	require.NoError(t, err)
	require.Len(t, det.Candidates, 2)
	assert.InDelta(t, 225.0, det.Candidates[0].Area, 1e-9)
	assert.InDelta(t, 225.0, det.Candidates[1].Area, 1e-9)
	assert.Equal(t, 256, det.MaskPixels["a"])
	assert.Equal(t, 512, det.MaskPixels["combined"])
}

func TestDetect_StrategyErrors(t *testing.T) {
	pre := &preprocess.Result{Enhanced: image.NewGray(image.Rect(0, 0, 10, 10))}

	boom := errors.New("boom")
	d, err := NewWithStrategies(DefaultConfig(), nil, fixedStrategy{name: "bad", err: boom})
	require.NoError(t, err)
	_, err = d.Detect(pre)
	require.ErrorIs(t, err, boom)
	var pe *ProcessingError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "bad", pe.Operation)

	d, err = NewWithStrategies(DefaultConfig(), nil, fixedStrategy{name: "small", mask: utils.NewMask(5, 5)})
	require.NoError(t, err)
	_, err = d.Detect(pre)
	assert.Error(t, err)
}

func TestThresholdStrategy(t *testing.T) {
	bin := utils.NewMask(4, 4)
	bin.Set(1, 1, true)
	m, err := ThresholdStrategy{}.Mask(Input{Pre: &preprocess.Result{Binary: bin}})
	require.NoError(t, err)
	assert.Equal(t, 1, m.Count())
	m.Set(0, 0, true)
	assert.Equal(t, 1, bin.Count(), "strategy must return its own copy")

	_, err = ThresholdStrategy{}.Mask(Input{})
	assert.Error(t, err)
}
