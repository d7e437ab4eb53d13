// Package detector finds candidate boundary contours in a preprocessed image.
//
// Independent strategies (marker color, edges, adaptive threshold) each
// produce a binary mask. The masks are merged by union, the union is dilated
// and closed to bridge gaps in hand-drawn strokes, and the outer contour of
// every connected component becomes a candidate.
package detector

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/plotmeter/internal/geometry"
	"github.com/MeKo-Tech/plotmeter/internal/preprocess"
	"github.com/MeKo-Tech/plotmeter/internal/utils"
)

// Backend names.
const (
	BackendNative = "native"
	BackendGoCV   = "gocv"
)

// Config holds the detector tunables.
type Config struct {
	MinArea          float64 // candidates with area <= MinArea (px²) are noise
	CannyLow         float64 // 0/0 derives both thresholds from the median intensity
	CannyHigh        float64
	KernelSize       int // square structuring element size
	DilateIterations int
	CloseIterations  int
	MarkerColors     []MarkerColor
	UseColors        bool
	UseEdges         bool
	UseThreshold     bool
	Backend          string
}

// DefaultConfig returns the standard detector configuration.
func DefaultConfig() Config {
	return Config{
		MinArea:          50,
		CannyLow:         50,
		CannyHigh:        150,
		KernelSize:       3,
		DilateIterations: 2,
		CloseIterations:  3,
		MarkerColors:     DefaultMarkerColors(),
		UseColors:        true,
		UseEdges:         true,
		UseThreshold:     true,
		Backend:          BackendNative,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := c.validateTunables(); err != nil {
		return err
	}
	if !c.UseColors && !c.UseEdges && !c.UseThreshold {
		return errors.New("at least one detection strategy must be enabled")
	}
	return nil
}

func (c Config) validateTunables() error {
	if c.MinArea < 0 {
		return fmt.Errorf("min area must be >= 0, got %v", c.MinArea)
	}
	if c.CannyLow < 0 || c.CannyHigh < 0 {
		return fmt.Errorf("canny thresholds must be >= 0, got %v/%v", c.CannyLow, c.CannyHigh)
	}
	if c.CannyLow > c.CannyHigh {
		return fmt.Errorf("canny low threshold %v exceeds high threshold %v", c.CannyLow, c.CannyHigh)
	}
	if c.KernelSize < 1 {
		return fmt.Errorf("kernel size must be >= 1, got %d", c.KernelSize)
	}
	if c.DilateIterations < 0 || c.CloseIterations < 0 {
		return errors.New("morphology iterations must be >= 0")
	}
	for _, m := range c.MarkerColors {
		if _, ok := markerRanges[m]; !ok {
			return fmt.Errorf("unknown marker color %q", m)
		}
	}
	switch c.Backend {
	case "", BackendNative, BackendGoCV:
	default:
		return fmt.Errorf("unknown detector backend %q", c.Backend)
	}
	return nil
}

// Contour is one candidate boundary.
type Contour struct {
	Points    []geometry.Point `json:"points"`
	Area      float64          `json:"area"`
	Perimeter float64          `json:"perimeter"`
	// Closed marks a traced ring whose last point connects back to the first
	// without repeating it.
	Closed bool `json:"closed"`
	// Order is the position in detection order, which is deterministic for
	// a given input.
	Order int `json:"order"`
}

// NewContour computes area and perimeter for a closed ring.
func NewContour(points []geometry.Point, order int) Contour {
	return Contour{
		Points:    points,
		Area:      geometry.PolygonArea(points),
		Perimeter: geometry.PolylineLength(points, true),
		Closed:    true,
		Order:     order,
	}
}

// Detection is the detector output.
type Detection struct {
	// Candidates are the surviving contours in detection order.
	Candidates []Contour
	// Discarded counts contours at or below the minimum area.
	Discarded int
	// MaskPixels records the pixel count each strategy contributed, keyed by
	// strategy name, plus "combined" for the closed union.
	MaskPixels map[string]int
	Width      int
	Height     int
}

// Detector runs the configured strategies and extracts candidates.
type Detector struct {
	cfg        Config
	strategies []Strategy
	logger     *slog.Logger
}

// New builds a Detector with the strategies enabled in cfg.
func New(cfg Config, logger *slog.Logger) (*Detector, error) {
	var strategies []Strategy
	if cfg.UseColors {
		strategies = append(strategies, &ColorStrategy{Colors: cfg.MarkerColors})
	}
	if cfg.UseEdges {
		strategies = append(strategies, &EdgeStrategy{Low: cfg.CannyLow, High: cfg.CannyHigh})
	}
	if cfg.UseThreshold {
		strategies = append(strategies, ThresholdStrategy{})
	}
	return NewWithStrategies(cfg, logger, strategies...)
}

// NewWithStrategies builds a Detector around an explicit strategy list. The
// Use* switches of cfg are ignored.
func NewWithStrategies(cfg Config, logger *slog.Logger, strategies ...Strategy) (*Detector, error) {
	if err := cfg.validateTunables(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}
	if len(strategies) == 0 {
		return nil, errors.New("invalid detector config: at least one detection strategy must be enabled")
	}
	if cfg.Backend == "" {
		cfg.Backend = BackendNative
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{cfg: cfg, strategies: strategies, logger: logger}, nil
}

// Config returns the configuration in use.
func (d *Detector) Config() Config { return d.cfg }

// Strategies returns the strategy names in combination order.
func (d *Detector) Strategies() []string {
	names := make([]string, len(d.strategies))
	for i, s := range d.strategies {
		names[i] = s.Name()
	}
	return names
}

// Detect extracts candidate contours from pre. The native backend needs the
// full preprocessing result; the gocv backend only reads pre.Source and
// runs the stages itself with pre.Config.
func (d *Detector) Detect(pre *preprocess.Result) (*Detection, error) {
	if d.cfg.Backend == BackendGoCV {
		if pre == nil || pre.Source == nil {
			return nil, &ProcessingError{Operation: "detect", Err: errors.New("missing source image")}
		}
		return detectGoCV(pre.Source, pre.Config, d.cfg)
	}
	if pre == nil || pre.Enhanced == nil {
		return nil, &ProcessingError{Operation: "detect", Err: errors.New("missing preprocessing result")}
	}

	combined, stats, err := d.CombinedMask(pre)
	if err != nil {
		return nil, err
	}
	det := extractCandidates(combined, d.cfg.MinArea)
	det.MaskPixels = stats
	d.logger.Debug("detection finished",
		"candidates", len(det.Candidates),
		"discarded", det.Discarded,
		"mask_pixels", stats["combined"])
	return det, nil
}

// CombinedMask runs every strategy, merges the masks by union and then
// applies dilation followed by closing. The union happens strictly before
// morphology so that adding a strategy never changes how masks combine.
func (d *Detector) CombinedMask(pre *preprocess.Result) (*utils.Mask, map[string]int, error) {
	b := pre.Enhanced.Bounds()
	union := utils.NewMask(b.Dx(), b.Dy())
	stats := make(map[string]int, len(d.strategies)+1)
	in := Input{Source: pre.Source, Pre: pre}

	for _, s := range d.strategies {
		m, err := s.Mask(in)
		if err != nil {
			return nil, nil, &ProcessingError{Operation: s.Name(), Err: err}
		}
		if !union.SameSize(m) {
			return nil, nil, &ProcessingError{
				Operation: s.Name(),
				Err:       fmt.Errorf("mask size %dx%d, want %dx%d", m.Width, m.Height, union.Width, union.Height),
			}
		}
		stats[s.Name()] = m.Count()
		union.Or(m)
	}

	closed := Dilate(union, d.cfg.KernelSize, d.cfg.DilateIterations)
	closed = Close(closed, d.cfg.KernelSize, d.cfg.CloseIterations)
	stats["combined"] = closed.Count()
	return closed, stats, nil
}

// extractCandidates labels connected components of mask, traces each outer
// boundary and splits the contours into survivors and discarded noise.
func extractCandidates(mask *utils.Mask, minArea float64) *Detection {
	det := &Detection{Width: mask.Width, Height: mask.Height}
	for _, c := range traceComponents(mask) {
		if c.Area <= minArea {
			det.Discarded++
			continue
		}
		c.Order = len(det.Candidates)
		det.Candidates = append(det.Candidates, c)
	}
	return det
}
