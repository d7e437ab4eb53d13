package geometry

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// LengthUnit names a supported length unit.
type LengthUnit string

// AreaUnit names a supported area unit.
type AreaUnit string

const (
	Meters      LengthUnit = "meters"
	Feet        LengthUnit = "feet"
	Yards       LengthUnit = "yards"
	Inches      LengthUnit = "inches"
	Centimeters LengthUnit = "centimeters"
	Millimeters LengthUnit = "millimeters"
	Miles       LengthUnit = "miles"
)

const (
	SquareMeters AreaUnit = "square_meters"
	SquareFeet   AreaUnit = "square_feet"
	Acres        AreaUnit = "acres"
)

// ErrUnknownUnit is returned for unit names outside the conversion tables.
var ErrUnknownUnit = errors.New("unknown unit")

// metersPer maps a length unit to its size in meters.
var metersPer = map[LengthUnit]float64{
	Meters:      1,
	Feet:        0.3048,
	Yards:       0.9144,
	Inches:      0.0254,
	Centimeters: 0.01,
	Millimeters: 0.001,
	Miles:       1609.344,
}

// squareMetersPer maps an area unit to its size in square meters.
var squareMetersPer = map[AreaUnit]float64{
	SquareMeters: 1,
	SquareFeet:   0.09290304,
	Acres:        4046.8564224,
}

var lengthAliases = map[string]LengthUnit{
	"m": Meters, "meter": Meters, "meters": Meters, "metre": Meters, "metres": Meters,
	"ft": Feet, "foot": Feet, "feet": Feet,
	"yd": Yards, "yard": Yards, "yards": Yards,
	"in": Inches, "inch": Inches, "inches": Inches,
	"cm": Centimeters, "centimeter": Centimeters, "centimeters": Centimeters,
	"mm": Millimeters, "millimeter": Millimeters, "millimeters": Millimeters,
	"mi": Miles, "mile": Miles, "miles": Miles,
}

var areaAliases = map[string]AreaUnit{
	"m2": SquareMeters, "sq_m": SquareMeters, "sq_meters": SquareMeters,
	"square_meter": SquareMeters, "square_meters": SquareMeters,
	"ft2": SquareFeet, "sq_ft": SquareFeet, "sq_feet": SquareFeet,
	"square_foot": SquareFeet, "square_feet": SquareFeet,
	"ac": Acres, "acre": Acres, "acres": Acres,
}

func normalizeUnitName(s string) string {
	s = strings.NewReplacer(" ", "_", "-", "_", "²", "2").Replace(strings.TrimSpace(s))
	// A Caser carries state, so each call gets its own.
	return cases.Fold().String(s)
}

// ParseLengthUnit resolves a user supplied length unit name or abbreviation.
func ParseLengthUnit(s string) (LengthUnit, error) {
	if u, ok := lengthAliases[normalizeUnitName(s)]; ok {
		return u, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownUnit, s)
}

// ParseAreaUnit resolves a user supplied area unit name or abbreviation.
func ParseAreaUnit(s string) (AreaUnit, error) {
	if u, ok := areaAliases[normalizeUnitName(s)]; ok {
		return u, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownUnit, s)
}

// Valid reports whether u is in the length table.
func (u LengthUnit) Valid() bool {
	_, ok := metersPer[u]
	return ok
}

// Valid reports whether u is in the area table.
func (u AreaUnit) Valid() bool {
	_, ok := squareMetersPer[u]
	return ok
}

// ConvertLength converts value between two length units via meters.
func ConvertLength(value float64, from, to LengthUnit) (float64, error) {
	f, ok := metersPer[from]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, from)
	}
	t, ok := metersPer[to]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, to)
	}
	if from == to {
		return value, nil
	}
	return value * f / t, nil
}

// ConvertArea converts value between two area units via square meters.
func ConvertArea(value float64, from, to AreaUnit) (float64, error) {
	f, ok := squareMetersPer[from]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, from)
	}
	t, ok := squareMetersPer[to]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, to)
	}
	if from == to {
		return value, nil
	}
	return value * f / t, nil
}

// LengthUnits lists the supported length units in a stable order.
func LengthUnits() []LengthUnit {
	out := make([]LengthUnit, 0, len(metersPer))
	for u := range metersPer {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AreaUnits lists the supported area units in a stable order.
func AreaUnits() []AreaUnit {
	out := make([]AreaUnit, 0, len(squareMetersPer))
	for u := range squareMetersPer {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
