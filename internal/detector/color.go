package detector

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/MeKo-Tech/plotmeter/internal/utils"
	"github.com/lucasb-eyer/go-colorful"
)

// MarkerColor names an ink color that hand-drawn boundaries are expected in.
type MarkerColor string

const (
	MarkerBlue  MarkerColor = "blue"
	MarkerRed   MarkerColor = "red"
	MarkerGreen MarkerColor = "green"
	MarkerBlack MarkerColor = "black"
)

// DefaultMarkerColors returns every supported marker color.
func DefaultMarkerColors() []MarkerColor {
	return []MarkerColor{MarkerBlue, MarkerRed, MarkerGreen, MarkerBlack}
}

// ParseMarkerColors converts names to marker colors, rejecting unknown ones.
func ParseMarkerColors(names []string) ([]MarkerColor, error) {
	out := make([]MarkerColor, 0, len(names))
	for _, n := range names {
		m := MarkerColor(strings.ToLower(strings.TrimSpace(n)))
		if _, ok := markerRanges[m]; !ok {
			return nil, fmt.Errorf("unknown marker color %q", n)
		}
		out = append(out, m)
	}
	return out, nil
}

// HSVRange is an inclusive box in HSV space using the 8-bit convention:
// hue 0..180, saturation and value 0..255.
type HSVRange struct {
	HMin, HMax float64
	SMin, SMax float64
	VMin, VMax float64
}

func (r HSVRange) contains(h, s, v float64) bool {
	return h >= r.HMin && h <= r.HMax && s >= r.SMin && s <= r.SMax && v >= r.VMin && v <= r.VMax
}

// markerRanges lists the HSV boxes for each marker. Red wraps around hue 0.
var markerRanges = map[MarkerColor][]HSVRange{
	MarkerBlue:  {{HMin: 100, HMax: 130, SMin: 50, SMax: 255, VMin: 50, VMax: 255}},
	MarkerRed:   {{HMin: 0, HMax: 10, SMin: 50, SMax: 255, VMin: 50, VMax: 255}, {HMin: 170, HMax: 180, SMin: 50, SMax: 255, VMin: 50, VMax: 255}},
	MarkerGreen: {{HMin: 40, HMax: 80, SMin: 50, SMax: 255, VMin: 50, VMax: 255}},
	MarkerBlack: {{HMin: 0, HMax: 180, SMin: 0, SMax: 255, VMin: 0, VMax: 50}},
}

// Ranges returns the HSV boxes for m.
func (m MarkerColor) Ranges() []HSVRange { return markerRanges[m] }

// ToHSV converts a color to 8-bit HSV (hue 0..180, saturation and value 0..255).
func ToHSV(c colorful.Color) (h, s, v float64) {
	h, s, v = c.Hsv()
	return h / 2, s * 255, v * 255
}

// ColorStrategy masks pixels whose color falls in one of the marker ranges.
type ColorStrategy struct {
	Colors []MarkerColor
}

// Name implements Strategy.
func (*ColorStrategy) Name() string { return "color" }

// Mask implements Strategy.
func (cs *ColorStrategy) Mask(in Input) (*utils.Mask, error) {
	if in.Source == nil {
		return nil, errors.New("no source image")
	}
	var ranges []HSVRange
	for _, m := range cs.Colors {
		ranges = append(ranges, markerRanges[m]...)
	}
	return ColorMask(in.Source, ranges), nil
}

// ColorMask marks every pixel of img inside any of ranges.
func ColorMask(img image.Image, ranges []HSVRange) *utils.Mask {
	rgba := utils.ToRGBA(img)
	w, h := rgba.Bounds().Dx(), rgba.Bounds().Dy()
	mask := utils.NewMask(w, h)
	if len(ranges) == 0 {
		return mask
	}
	for y := range h {
		row := rgba.Pix[y*rgba.Stride:]
		for x := range w {
			c := colorful.Color{
				R: float64(row[x*4]) / 255,
				G: float64(row[x*4+1]) / 255,
				B: float64(row[x*4+2]) / 255,
			}
			hh, ss, vv := ToHSV(c)
			for _, r := range ranges {
				if r.contains(hh, ss, vv) {
					mask.Pix[y*w+x] = true
					break
				}
			}
		}
	}
	return mask
}
