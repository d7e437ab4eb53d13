// Package render draws a measured boundary and its numbers over the source
// image.
package render

import (
	"image"
	"image/color"
	"io"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/MeKo-Tech/plotmeter/internal/geometry"
	"github.com/MeKo-Tech/plotmeter/internal/measure"
	"github.com/MeKo-Tech/plotmeter/internal/utils"
)

// Options controls overlay appearance.
type Options struct {
	StrokeColor color.RGBA
	StrokeWidth int
	FillColor   color.RGBA
	FillAlpha   float64 // share of FillColor in filled pixels, 0..1
	TextColor   color.RGBA
	// BackingAlpha is the opacity of the dark box behind labels; 0 draws none.
	BackingAlpha float64
	Labels       bool
}

// DefaultOptions returns a blue stroke, a 30% green fill and white labels.
func DefaultOptions() Options {
	return Options{
		StrokeColor:  color.RGBA{B: 255, A: 255},
		StrokeWidth:  2,
		FillColor:    color.RGBA{G: 255, A: 255},
		FillAlpha:    0.3,
		TextColor:    color.RGBA{R: 255, G: 255, B: 255, A: 255},
		BackingAlpha: 0.6,
		Labels:       true,
	}
}

var labelOrigins = [2]image.Point{{X: 10, Y: 30}, {X: 10, Y: 60}}

// Overlay returns a copy of img with the boundary filled and stroked and the
// measurement printed in the top left corner. img is not modified.
func Overlay(img image.Image, boundary []geometry.Point, res measure.Result, opts Options) *image.RGBA {
	if img == nil {
		return nil
	}
	dst := utils.ToRGBA(img)

	if len(boundary) >= 3 && opts.FillAlpha > 0 {
		utils.FillPolygon(dst, boundary, opts.FillColor, opts.FillAlpha)
	}
	if len(boundary) >= 2 && opts.StrokeWidth > 0 {
		utils.DrawPolygon(dst, boundary, opts.StrokeColor, opts.StrokeWidth)
	}
	if opts.Labels {
		for i, text := range Labels(res) {
			drawLabel(dst, labelOrigins[i], text, opts)
		}
	}
	return dst
}

// Labels returns the two overlay captions for res.
func Labels(res measure.Result) [2]string {
	return [2]string{
		"Length: " + res.LineLength + " " + res.Unit,
		"Area: " + res.Area + " " + res.Unit + "²",
	}
}

func drawLabel(dst *image.RGBA, at image.Point, text string, opts Options) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(opts.TextColor),
		Face: face,
		Dot:  fixed.P(at.X, at.Y),
	}
	if opts.BackingAlpha > 0 {
		w := d.MeasureString(text).Ceil()
		m := face.Metrics()
		box := image.Rect(at.X-4, at.Y-m.Ascent.Ceil()-3, at.X+w+4, at.Y+m.Descent.Ceil()+3)
		utils.DrawRect(dst, box, color.RGBA{A: 255}, opts.BackingAlpha)
	}
	d.DrawString(text)
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return utils.EncodePNG(w, img)
}
