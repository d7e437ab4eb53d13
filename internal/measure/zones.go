package measure

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/plotmeter/internal/geometry"
)

// ErrNotCalibrated is returned when a summary needs real-world units.
var ErrNotCalibrated = errors.New("measurement has no real-world scale")

// ErrInvalidZone is wrapped by every rejected property summary input.
var ErrInvalidZone = errors.New("invalid zone")

// MinZonePoints is the smallest point count a zone can enclose area with.
const MinZonePoints = 3

const zoneNoScaleNote = "No scale provided. Measurements in pixels only."

// Zones lists a measurement in several units. The pixel values are always
// set; the unit maps only when the measurement was calibrated.
type Zones struct {
	ZoneType        string             `json:"zone_type,omitempty" yaml:"zone_type,omitempty"`
	Perimeter       map[string]float64 `json:"perimeter,omitempty" yaml:"perimeter,omitempty"`
	Area            map[string]float64 `json:"area,omitempty" yaml:"area,omitempty"`
	PixelsPerMeter  float64            `json:"pixels_per_meter,omitempty" yaml:"pixels_per_meter,omitempty"`
	PerimeterPixels float64            `json:"perimeter_pixels" yaml:"perimeter_pixels"`
	AreaSqPixels    float64            `json:"area_sq_pixels" yaml:"area_sq_pixels"`
	Note            string             `json:"note,omitempty" yaml:"note,omitempty"`
}

var (
	zoneLengthUnits = []geometry.LengthUnit{geometry.Meters, geometry.Feet, geometry.Yards, geometry.Miles}
	zoneAreaUnits   = []geometry.AreaUnit{geometry.SquareMeters, geometry.SquareFeet, geometry.Acres}
)

func round(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

// Summary converts a calibrated report into every zone unit. Acres keep four
// decimals, everything else two.
func Summary(r *Report, zoneType string) (*Zones, error) {
	if r == nil || !r.Calibrated() {
		return nil, ErrNotCalibrated
	}
	return ZoneSummary(r, zoneType)
}

// ZoneSummary is Summary for reports of any calibration. Uncalibrated
// reports get the pixel values and a note.
func ZoneSummary(r *Report, zoneType string) (*Zones, error) {
	if r == nil {
		return nil, ErrNotCalibrated
	}
	z := &Zones{
		ZoneType:        zoneType,
		PerimeterPixels: round(r.LengthPixels, 2),
		AreaSqPixels:    round(r.AreaPixels, 2),
	}
	if !r.Calibrated() {
		z.Note = zoneNoScaleNote
		return z, nil
	}
	ppm := r.Calibration.PixelsPerMeter
	z.PixelsPerMeter = ppm
	var err error
	if z.Perimeter, err = lengthUnits(r.LengthPixels / ppm); err != nil {
		return nil, err
	}
	if z.Area, err = areaUnits(r.AreaPixels / (ppm * ppm)); err != nil {
		return nil, err
	}
	return z, nil
}

func lengthUnits(meters float64) (map[string]float64, error) {
	out := make(map[string]float64, len(zoneLengthUnits))
	for _, u := range zoneLengthUnits {
		v, err := geometry.ConvertLength(meters, geometry.Meters, u)
		if err != nil {
			return nil, err
		}
		out[string(u)] = round(v, 2)
	}
	return out, nil
}

func areaUnits(sqMeters float64) (map[string]float64, error) {
	out := make(map[string]float64, len(zoneAreaUnits))
	for _, u := range zoneAreaUnits {
		v, err := geometry.ConvertArea(sqMeters, geometry.SquareMeters, u)
		if err != nil {
			return nil, err
		}
		d := 2
		if u == geometry.Acres {
			d = 4
		}
		out[string(u)] = round(v, d)
	}
	return out, nil
}

// ZoneInput is one already measured zone of a property, in pixels.
type ZoneInput struct {
	AreaPixels      float64  `json:"area_pixels"`
	PerimeterPixels *float64 `json:"perimeter_pixels,omitempty"`
}

// ZoneTotals is one zone of a property summary in real-world units.
type ZoneTotals struct {
	Area      map[string]float64 `json:"area"`
	Perimeter map[string]float64 `json:"perimeter,omitempty"`
}

// PropertyTotal is the summed area of every zone.
type PropertyTotal struct {
	Area map[string]float64 `json:"area"`
}

// Property aggregates the zones of one property.
type Property struct {
	PropertyTotal PropertyTotal         `json:"property_total"`
	Zones         map[string]ZoneTotals `json:"zones"`
}

// PropertySummary converts pixel measurements of several zones with one
// scale and adds up their areas. A property with no zones has zero area.
func PropertySummary(zones map[string]ZoneInput, pixelsPerMeter float64) (*Property, error) {
	if pixelsPerMeter <= 0 || !finite(pixelsPerMeter) {
		return nil, fmt.Errorf("%w: pixels_per_meter is required and must be positive", ErrInvalidZone)
	}
	sq := pixelsPerMeter * pixelsPerMeter

	p := &Property{Zones: make(map[string]ZoneTotals, len(zones))}
	var total float64
	for name, in := range zones {
		if in.AreaPixels < 0 || !finite(in.AreaPixels) {
			return nil, fmt.Errorf("%w: zone %q: area_pixels must be >= 0", ErrInvalidZone, name)
		}
		sqMeters := in.AreaPixels / sq
		total += sqMeters

		var zt ZoneTotals
		var err error
		if zt.Area, err = areaUnits(sqMeters); err != nil {
			return nil, err
		}
		if in.PerimeterPixels != nil {
			if *in.PerimeterPixels < 0 || !finite(*in.PerimeterPixels) {
				return nil, fmt.Errorf("%w: zone %q: perimeter_pixels must be >= 0", ErrInvalidZone, name)
			}
			if zt.Perimeter, err = lengthUnits(*in.PerimeterPixels / pixelsPerMeter); err != nil {
				return nil, err
			}
		}
		p.Zones[name] = zt
	}

	var err error
	if p.PropertyTotal.Area, err = areaUnits(total); err != nil {
		return nil, err
	}
	return p, nil
}
