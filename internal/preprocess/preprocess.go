// Package preprocess turns an arbitrary input raster into the grayscale,
// denoised, contrast-normalised and thresholded buffers the detector consumes.
//
// Every stage allocates its own output; the caller's image is only read.
package preprocess

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/plotmeter/internal/utils"
	"github.com/disintegration/imaging"
)

// Config holds the tunables of each preprocessing stage.
type Config struct {
	DenoiseStrength float64 // NL-means filter strength h; 0 disables denoising
	TemplateWindow  int     // NL-means patch size (odd)
	SearchWindow    int     // NL-means search area size (odd)
	ClaheClip       float64 // CLAHE clip limit; 0 disables equalisation
	ClaheTiles      int     // CLAHE tile grid is ClaheTiles x ClaheTiles
	ThresholdBlock  int     // adaptive threshold neighbourhood (odd, >= 3)
	ThresholdC      float64 // constant subtracted from the local mean
	MaxDimension    int     // downscale larger inputs to fit; 0 keeps full size
}

// DefaultConfig returns the standard preprocessing settings.
func DefaultConfig() Config {
	return Config{
		DenoiseStrength: 10,
		TemplateWindow:  7,
		SearchWindow:    21,
		ClaheClip:       2.0,
		ClaheTiles:      8,
		ThresholdBlock:  11,
		ThresholdC:      2,
		MaxDimension:    0,
	}
}

// Validate checks the settings for values no stage can work with.
func (c Config) Validate() error {
	if c.DenoiseStrength < 0 {
		return fmt.Errorf("denoise strength must be >= 0, got %v", c.DenoiseStrength)
	}
	if c.DenoiseStrength > 0 {
		if c.TemplateWindow < 1 || c.TemplateWindow%2 == 0 {
			return fmt.Errorf("template window must be a positive odd number, got %d", c.TemplateWindow)
		}
		if c.SearchWindow < c.TemplateWindow || c.SearchWindow%2 == 0 {
			return fmt.Errorf("search window must be odd and >= template window, got %d", c.SearchWindow)
		}
	}
	if c.ClaheClip < 0 {
		return fmt.Errorf("clahe clip limit must be >= 0, got %v", c.ClaheClip)
	}
	if c.ClaheClip > 0 && c.ClaheTiles < 1 {
		return fmt.Errorf("clahe tiles must be >= 1, got %d", c.ClaheTiles)
	}
	if c.ThresholdBlock < 3 || c.ThresholdBlock%2 == 0 {
		return fmt.Errorf("threshold block must be an odd number >= 3, got %d", c.ThresholdBlock)
	}
	if c.MaxDimension < 0 {
		return fmt.Errorf("max dimension must be >= 0, got %d", c.MaxDimension)
	}
	return nil
}

// Result carries every intermediate buffer. Each one is independently owned.
type Result struct {
	// Source is the color image the later stages see. It is the caller's
	// image unless it had to be downscaled, in which case it is a new buffer.
	Source   image.Image
	Gray     *image.Gray
	Denoised *image.Gray
	Enhanced *image.Gray
	Binary   *utils.Mask
	// Scale maps Source pixels back to input pixels: input = source / Scale.
	Scale float64
	// Config is the configuration the stages ran with, or should run with
	// when the result came from Prepare.
	Config Config
}

// Preprocessor runs the preprocessing stages in order.
type Preprocessor struct {
	cfg    Config
	logger *slog.Logger
}

// New returns a Preprocessor. A nil logger falls back to slog.Default().
func New(cfg Config, logger *slog.Logger) (*Preprocessor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid preprocess config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Preprocessor{cfg: cfg, logger: logger}, nil
}

// Config returns the settings in use.
func (p *Preprocessor) Config() Config { return p.cfg }

// CheckImage rejects nil and empty images.
func CheckImage(img image.Image) error {
	if img == nil {
		return &InvalidImageError{Reason: "image is nil"}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return &InvalidImageError{Reason: fmt.Sprintf("zero dimensions %dx%d", b.Dx(), b.Dy())}
	}
	return nil
}

// Decode turns raw bytes into an image, mapping every failure to InvalidImageError.
func Decode(data []byte) (image.Image, error) {
	img, _, err := utils.DecodeImage(data)
	if err != nil {
		var ipe *utils.ImageIOError
		if errors.As(err, &ipe) {
			return nil, &InvalidImageError{Reason: "cannot decode raster", Err: ipe.Err}
		}
		return nil, &InvalidImageError{Reason: "cannot decode raster", Err: err}
	}
	return img, nil
}

// Prepare checks img and downscales it when needed. Only Source, Scale and
// Config are set; backends that preprocess on their own start from here.
func (p *Preprocessor) Prepare(img image.Image) (*Result, error) {
	if err := CheckImage(img); err != nil {
		return nil, err
	}

	res := &Result{Source: img, Scale: 1, Config: p.cfg}
	b := img.Bounds()
	if p.cfg.MaxDimension > 0 && max(b.Dx(), b.Dy()) > p.cfg.MaxDimension {
		resized := imaging.Fit(img, p.cfg.MaxDimension, p.cfg.MaxDimension, imaging.Lanczos)
		res.Source = resized
		res.Scale = float64(resized.Bounds().Dx()) / float64(b.Dx())
		p.logger.Debug("downscaled input", "from_w", b.Dx(), "from_h", b.Dy(),
			"to_w", resized.Bounds().Dx(), "to_h", resized.Bounds().Dy())
	}
	return res, nil
}

// Process runs grayscale, denoise, contrast enhancement and adaptive
// thresholding over img.
func (p *Preprocessor) Process(img image.Image) (*Result, error) {
	res, err := p.Prepare(img)
	if err != nil {
		return nil, err
	}

	if utils.IsGrayscale(res.Source) {
		p.logger.Debug("input already grayscale")
	}
	res.Gray = utils.ToGray(res.Source)

	if p.cfg.DenoiseStrength > 0 {
		res.Denoised = Denoise(res.Gray, float32(p.cfg.DenoiseStrength), p.cfg.TemplateWindow, p.cfg.SearchWindow)
	} else {
		res.Denoised = cloneGray(res.Gray)
	}

	if p.cfg.ClaheClip > 0 {
		res.Enhanced = Equalize(res.Denoised, p.cfg.ClaheClip, p.cfg.ClaheTiles)
	} else {
		res.Enhanced = cloneGray(res.Denoised)
	}

	res.Binary = AdaptiveThreshold(res.Enhanced, p.cfg.ThresholdBlock, p.cfg.ThresholdC)
	return res, nil
}

func cloneGray(g *image.Gray) *image.Gray {
	out := image.NewGray(g.Rect)
	copy(out.Pix, g.Pix)
	return out
}
