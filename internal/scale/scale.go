// Package scale converts pixel measurements into real-world units, either
// from an explicit reference span or from a map zoom level estimate.
package scale

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/plotmeter/internal/geometry"
)

// Reference says that PixelSpan pixels in the image measure RealLength Unit.
type Reference struct {
	PixelSpan  float64             `json:"reference_pixels"`
	RealLength float64             `json:"reference_length"`
	Unit       geometry.LengthUnit `json:"reference_unit"`
}

// NewReference builds a Reference from transport values. The unit name is
// normalised when it is recognised and kept verbatim otherwise so that
// Validate can report it. An empty unit means meters.
func NewReference(span, length float64, unit string) *Reference {
	u := geometry.LengthUnit(unit)
	if unit == "" {
		u = geometry.Meters
	} else if parsed, err := geometry.ParseLengthUnit(unit); err == nil {
		u = parsed
	}
	return &Reference{PixelSpan: span, RealLength: length, Unit: u}
}

// referenceUnits are the units a scale reference may be given in. Miles
// convert but are too coarse to calibrate a drawing.
var referenceUnits = map[geometry.LengthUnit]bool{
	geometry.Meters:      true,
	geometry.Feet:        true,
	geometry.Yards:       true,
	geometry.Inches:      true,
	geometry.Centimeters: true,
	geometry.Millimeters: true,
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Validate checks span, length and unit.
func (r *Reference) Validate() error {
	if !positive(r.PixelSpan) {
		return &InvalidScaleError{Field: "reference_pixels", Value: r.PixelSpan, Err: errors.New("must be a positive number")}
	}
	if !positive(r.RealLength) {
		return &InvalidScaleError{Field: "reference_length", Value: r.RealLength, Err: errors.New("must be a positive number")}
	}
	if !r.Unit.Valid() {
		return &InvalidScaleError{Field: "reference_unit", Value: string(r.Unit), Err: geometry.ErrUnknownUnit}
	}
	if !referenceUnits[r.Unit] {
		return &InvalidScaleError{Field: "reference_unit", Value: string(r.Unit), Err: errors.New("not a reference unit")}
	}
	return nil
}

// PixelsPerMeter derives the scale ratio.
func (r *Reference) PixelsPerMeter() (float64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	meters, err := geometry.ConvertLength(r.RealLength, r.Unit, geometry.Meters)
	if err != nil {
		return 0, &InvalidScaleError{Field: "reference_unit", Value: string(r.Unit), Err: err}
	}
	return r.PixelSpan / meters, nil
}

// Web Mercator ground resolution at the equator for zoom 0, in meters per
// pixel of a 256 px tile.
const equatorMetersPerPixel = 156543.03392

// Zoom and latitude limits of the Web Mercator tile scheme.
const (
	MinZoom     = 0
	MaxZoom     = 23
	MaxLatitude = 85.0
)

// ZoomHint is the zoom level and center latitude of a map screenshot.
type ZoomHint struct {
	Latitude float64 `json:"lat"`
	Zoom     int     `json:"zoom"`
}

// Validate checks the zoom level and latitude ranges.
func (z *ZoomHint) Validate() error {
	if z.Zoom < MinZoom || z.Zoom > MaxZoom {
		return &InvalidScaleError{Field: "zoom", Value: z.Zoom, Err: fmt.Errorf("must be in %d..%d", MinZoom, MaxZoom)}
	}
	if math.IsNaN(z.Latitude) || math.Abs(z.Latitude) > MaxLatitude {
		return &InvalidScaleError{Field: "lat", Value: z.Latitude, Err: fmt.Errorf("must be in %v..%v", -MaxLatitude, MaxLatitude)}
	}
	return nil
}

// MetersPerPixel is the nominal ground resolution at the hint's latitude.
func (z *ZoomHint) MetersPerPixel() float64 {
	return equatorMetersPerPixel * math.Cos(z.Latitude*math.Pi/180) / math.Exp2(float64(z.Zoom))
}

// PixelsPerMeter is the inverse of MetersPerPixel.
func (z *ZoomHint) PixelsPerMeter() (float64, error) {
	if err := z.Validate(); err != nil {
		return 0, err
	}
	return 1 / z.MetersPerPixel(), nil
}

// Source says where a calibration came from.
type Source string

const (
	SourceNone         Source = "none"
	SourceReference    Source = "reference"
	SourceZoomEstimate Source = "zoom_estimate"
)

// Calibration is the outcome of Calibrate.
type Calibration struct {
	Source         Source     `json:"source"`
	PixelsPerMeter float64    `json:"pixels_per_meter,omitempty"`
	Estimate       bool       `json:"estimate"`
	Reference      *Reference `json:"reference,omitempty"`
	Hint           *ZoomHint  `json:"hint,omitempty"`
	// Err holds the rejected reference or hint, if any. The calibration
	// itself is still usable.
	Err error `json:"-"`
}

// Calibrated reports whether measurements can be given in meters.
func (c Calibration) Calibrated() bool {
	return c.Source != SourceNone && c.PixelsPerMeter > 0
}

// ToMeters converts a pixel length.
func (c Calibration) ToMeters(px float64) float64 {
	if !c.Calibrated() {
		return px
	}
	return px / c.PixelsPerMeter
}

// ToSquareMeters converts a pixel area.
func (c Calibration) ToSquareMeters(px2 float64) float64 {
	if !c.Calibrated() {
		return px2
	}
	return px2 / (c.PixelsPerMeter * c.PixelsPerMeter)
}

// Calibrate chooses the best available scale. A valid reference wins, a valid
// zoom hint gives an estimate, and otherwise measurements stay in pixels.
// Rejected inputs never fail the calibration; the first rejection is kept in
// Err.
func Calibrate(ref *Reference, hint *ZoomHint) Calibration {
	var rejected error
	if ref != nil {
		ppm, err := ref.PixelsPerMeter()
		if err == nil {
			return Calibration{Source: SourceReference, PixelsPerMeter: ppm, Reference: ref}
		}
		rejected = err
	}
	if hint != nil {
		ppm, err := hint.PixelsPerMeter()
		if err == nil {
			return Calibration{Source: SourceZoomEstimate, PixelsPerMeter: ppm, Estimate: true, Hint: hint, Err: rejected}
		}
		if rejected == nil {
			rejected = err
		}
	}
	return Calibration{Source: SourceNone, Err: rejected}
}
