package measure

import (
	"strconv"

	"github.com/MeKo-Tech/plotmeter/internal/geometry"
	"github.com/MeKo-Tech/plotmeter/internal/scale"
	"github.com/MeKo-Tech/plotmeter/internal/selector"
)

// Result units.
const (
	UnitPixels = "pixels"
	UnitMeters = "meters"
)

// Measurement modes.
const (
	ModeImage  = "image"
	ModePoints = "points"
)

// Result is the wire format of a measurement. Numbers are text with two
// decimals.
type Result struct {
	LineLength string `json:"line_length" yaml:"line_length"`
	Area       string `json:"area" yaml:"area"`
	Unit       string `json:"unit" yaml:"unit"`
	Notes      string `json:"notes" yaml:"notes"`
}

// FormatValue renders v the way Result fields carry numbers.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Report is a Result plus everything that went into it.
type Report struct {
	Result Result `json:"result" yaml:"result"`
	Mode   string `json:"mode" yaml:"mode"`
	// Found is false when no boundary was detected.
	Found      bool             `json:"found" yaml:"found"`
	Boundary   []geometry.Point `json:"boundary,omitempty" yaml:"boundary,omitempty"`
	Closed     bool             `json:"closed" yaml:"closed"`
	AutoClosed bool             `json:"auto_closed" yaml:"auto_closed"`
	// Length and Area are in Result.Unit (square units for Area).
	Length       float64           `json:"length" yaml:"length"`
	Area         float64           `json:"area" yaml:"area"`
	LengthPixels float64           `json:"length_pixels" yaml:"length_pixels"`
	AreaPixels   float64           `json:"area_pixels" yaml:"area_pixels"`
	Calibration  scale.Calibration `json:"calibration" yaml:"calibration"`
	Candidates   []selector.Ranked `json:"candidates,omitempty" yaml:"candidates,omitempty"`
	Discarded    int               `json:"discarded,omitempty" yaml:"discarded,omitempty"`
	Width        int               `json:"width,omitempty" yaml:"width,omitempty"`
	Height       int               `json:"height,omitempty" yaml:"height,omitempty"`
	Zones        *Zones            `json:"zones,omitempty" yaml:"zones,omitempty"`
}

// Calibrated reports whether the lengths are in meters.
func (r *Report) Calibrated() bool { return r.Result.Unit == UnitMeters }
