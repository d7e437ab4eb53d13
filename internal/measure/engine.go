// Package measure ties preprocessing, detection, selection and calibration
// together into length and area measurements.
package measure

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/plotmeter/internal/common"
	"github.com/MeKo-Tech/plotmeter/internal/detector"
	"github.com/MeKo-Tech/plotmeter/internal/geometry"
	"github.com/MeKo-Tech/plotmeter/internal/preprocess"
	"github.com/MeKo-Tech/plotmeter/internal/scale"
	"github.com/MeKo-Tech/plotmeter/internal/selector"
)

// Config holds the configuration of every stage.
type Config struct {
	Preprocess preprocess.Config
	Detector   detector.Config
	Selector   selector.Options
}

// DefaultConfig returns the stage defaults.
func DefaultConfig() Config {
	return Config{
		Preprocess: preprocess.DefaultConfig(),
		Detector:   detector.DefaultConfig(),
		Selector:   selector.DefaultOptions(),
	}
}

// Validate checks every stage configuration.
func (c Config) Validate() error {
	if err := c.Preprocess.Validate(); err != nil {
		return fmt.Errorf("preprocess: %w", err)
	}
	if err := c.Detector.Validate(); err != nil {
		return fmt.Errorf("detector: %w", err)
	}
	if err := c.Selector.Validate(); err != nil {
		return fmt.Errorf("selector: %w", err)
	}
	return nil
}

// Builder constructs an Engine with fluent configuration.
type Builder struct {
	cfg    Config
	logger *slog.Logger
	scales scale.Detector
}

// NewBuilder creates a builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithPreprocess sets the preprocessing configuration.
func (b *Builder) WithPreprocess(cfg preprocess.Config) *Builder {
	b.cfg.Preprocess = cfg
	return b
}

// WithDetector sets the detector configuration.
func (b *Builder) WithDetector(cfg detector.Config) *Builder {
	b.cfg.Detector = cfg
	return b
}

// WithMinArea sets the noise threshold in square pixels.
func (b *Builder) WithMinArea(area float64) *Builder {
	if area >= 0 {
		b.cfg.Detector.MinArea = area
	}
	return b
}

// WithMarkerColors restricts color detection to the given markers.
func (b *Builder) WithMarkerColors(colors ...detector.MarkerColor) *Builder {
	if len(colors) > 0 {
		b.cfg.Detector.MarkerColors = colors
	}
	return b
}

// WithCloseEpsilon sets the gap under which a path counts as closed.
func (b *Builder) WithCloseEpsilon(eps float64) *Builder {
	if eps > 0 {
		b.cfg.Selector.CloseEpsilon = eps
	}
	return b
}

// WithSimplifyTolerance enables Douglas-Peucker simplification of the
// selected boundary.
func (b *Builder) WithSimplifyTolerance(tol float64) *Builder {
	if tol >= 0 {
		b.cfg.Selector.SimplifyTolerance = tol
	}
	return b
}

// WithMaxDimension downscales large inputs before processing.
func (b *Builder) WithMaxDimension(px int) *Builder {
	if px >= 0 {
		b.cfg.Preprocess.MaxDimension = px
	}
	return b
}

// WithLogger sets the logger. Nil uses slog.Default().
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithScaleDetector sets the fallback used when an image request carries
// neither a reference nor a zoom hint. Nil restores scale.Unsupported.
func (b *Builder) WithScaleDetector(d scale.Detector) *Builder {
	b.scales = d
	return b
}

// Config returns a copy of the current configuration.
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration and returns the Engine.
func (b *Builder) Build() (*Engine, error) {
	e, err := New(b.cfg, b.logger)
	if err != nil {
		return nil, err
	}
	if b.scales != nil {
		e.scales = b.scales
	}
	return e, nil
}

// Engine measures boundaries. It holds no per-request state and is safe for
// concurrent use.
type Engine struct {
	cfg      Config
	pre      *preprocess.Preprocessor
	detector *detector.Detector
	scales   scale.Detector
	logger   *slog.Logger
}

// New creates an Engine.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid measure config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	pre, err := preprocess.New(cfg.Preprocess, logger)
	if err != nil {
		return nil, err
	}
	det, err := detector.New(cfg.Detector, logger)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, pre: pre, detector: det, scales: scale.Unsupported{}, logger: logger}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// FromImage finds the drawn boundary in img and measures it. A missing
// boundary is not an error: the report then carries a zero result.
func (e *Engine) FromImage(ctx context.Context, img image.Image, ref *scale.Reference, hint *scale.ZoomHint) (*Report, error) {
	sw := common.NewStopwatch()

	pre, err := e.preprocess(img)
	if err != nil {
		return nil, err
	}
	sw.Lap("preprocess")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	det, err := e.detector.Detect(pre)
	if err != nil {
		return nil, fmt.Errorf("detect boundary: %w", err)
	}
	sw.Lap("detect")
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if ref == nil && hint == nil {
		ref = e.detectScale(ctx, img)
	}

	rep, err := e.fromDetection(det, pre.Scale, img.Bounds(), scale.Calibrate(ref, hint))
	if err != nil {
		return nil, err
	}
	sw.Lap("measure")
	e.logger.Debug("measured image",
		"candidates", len(det.Candidates),
		"found", rep.Found,
		"unit", rep.Result.Unit,
		"timing", sw)
	return rep, nil
}

// preprocess runs the native stages, or only the downscale step when the
// gocv backend does its own preprocessing.
func (e *Engine) preprocess(img image.Image) (*preprocess.Result, error) {
	if e.cfg.Detector.Backend == detector.BackendGoCV {
		return e.pre.Prepare(img)
	}
	return e.pre.Process(img)
}

// detectScale asks the scale detector for a reference printed in img. Any
// failure leaves the measurement in pixels.
func (e *Engine) detectScale(ctx context.Context, img image.Image) *scale.Reference {
	ref, err := e.scales.DetectScale(ctx, img)
	switch {
	case errors.Is(err, scale.ErrNotSupported):
		e.logger.Debug("no scale detector available")
		return nil
	case err != nil:
		e.logger.Warn("scale detection failed", "error", err)
		return nil
	}
	return ref
}

// fromDetection selects and measures the boundary among det's candidates.
// factor maps detection pixels back to input pixels (input = det / factor).
func (e *Engine) fromDetection(det *detector.Detection, factor float64, bounds image.Rectangle, cal scale.Calibration) (*Report, error) {
	rep := &Report{Mode: ModeImage, Calibration: cal, Discarded: det.Discarded, Width: bounds.Dx(), Height: bounds.Dy()}
	noise := noiseNote(det.Discarded, e.cfg.Detector.MinArea)

	sel, err := selector.Select(det.Candidates, e.cfg.Selector)
	switch {
	case errors.Is(err, selector.ErrNoBoundary):
		n := notes{noBoundaryNote, unmeasuredScaleNote(cal), noise}
		rep.Result = Result{LineLength: FormatValue(0), Area: FormatValue(0), Unit: UnitPixels, Notes: n.String()}
		return rep, nil
	case err != nil:
		return nil, fmt.Errorf("select boundary: %w", err)
	}

	boundary := sel.Boundary.Points
	if factor > 0 && factor != 1 {
		boundary = geometry.Scale(boundary, 1/factor)
	}
	rep.Found = true
	rep.Boundary = boundary
	rep.Closed = sel.Boundary.Closed
	rep.AutoClosed = sel.Boundary.AutoClosed
	rep.Candidates = sel.Ranked
	e.measure(rep)

	n := notes{scaleNote(cal), closureNote(rep.Closed, rep.AutoClosed), extrasNote(sel), noise}
	rep.Result.Notes = n.String()
	return rep, nil
}

// FromPoints measures a point sequence given in image pixel coordinates.
func (e *Engine) FromPoints(ctx context.Context, points []geometry.Point, ref *scale.Reference, hint *scale.ZoomHint) (*Report, error) {
	if err := ValidatePoints(points); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := selector.NormalizePoints(points)
	rep := &Report{
		Mode:        ModePoints,
		Found:       true,
		Boundary:    b.Points,
		Closed:      b.Closed,
		AutoClosed:  b.AutoClosed,
		Calibration: scale.Calibrate(ref, hint),
	}
	e.measure(rep)

	n := notes{scaleNote(rep.Calibration), closureNote(rep.Closed, rep.AutoClosed), noExtrasNote}
	rep.Result.Notes = n.String()
	e.logger.Debug("measured points", "points", len(points), "unit", rep.Result.Unit)
	return rep, nil
}

// measure fills the numeric fields of rep from its boundary and calibration.
func (e *Engine) measure(rep *Report) {
	rep.LengthPixels = geometry.PolylineLength(rep.Boundary, true)
	rep.AreaPixels = geometry.PolygonArea(rep.Boundary)

	unit := UnitPixels
	rep.Length, rep.Area = rep.LengthPixels, rep.AreaPixels
	if rep.Calibration.Calibrated() {
		unit = UnitMeters
		rep.Length = rep.Calibration.ToMeters(rep.LengthPixels)
		rep.Area = rep.Calibration.ToSquareMeters(rep.AreaPixels)
	}
	rep.Result.LineLength = FormatValue(rep.Length)
	rep.Result.Area = FormatValue(rep.Area)
	rep.Result.Unit = unit
}
