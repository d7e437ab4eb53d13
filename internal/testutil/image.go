package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Marker colors used to draw synthetic boundaries.
var (
	Blue  = color.RGBA{R: 20, G: 40, B: 230, A: 255}
	Red   = color.RGBA{R: 220, G: 20, B: 20, A: 255}
	Green = color.RGBA{R: 30, G: 200, B: 40, A: 255}
	Black = color.RGBA{A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Canvas returns a w x h image filled with bg.
func Canvas(w, h int, bg color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)
	return img
}

// FillRect paints r on img.
func FillRect(img *image.RGBA, r image.Rectangle, col color.Color) {
	draw.Draw(img, r.Intersect(img.Bounds()), &image.Uniform{C: col}, image.Point{}, draw.Src)
}

// StrokeRect draws the outline of r with the given thickness, inside r.
func StrokeRect(img *image.RGBA, r image.Rectangle, col color.Color, thickness int) {
	FillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+thickness), col)
	FillRect(img, image.Rect(r.Min.X, r.Max.Y-thickness, r.Max.X, r.Max.Y), col)
	FillRect(img, image.Rect(r.Min.X, r.Min.Y, r.Min.X+thickness, r.Max.Y), col)
	FillRect(img, image.Rect(r.Max.X-thickness, r.Min.Y, r.Max.X, r.Max.Y), col)
}

// SquarePlot draws a blue hand-drawn style square outline on a white canvas.
func SquarePlot(w, h int, r image.Rectangle) *image.RGBA {
	img := Canvas(w, h, White)
	StrokeRect(img, r, Blue, 3)
	return img
}

// AddNoise perturbs every channel by up to ±amount with a fixed seed.
func AddNoise(img *image.RGBA, amount int, seed int64) {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic test noise
	for i := 0; i < len(img.Pix); i += 4 {
		for c := range 3 {
			v := int(img.Pix[i+c]) + rng.Intn(2*amount+1) - amount
			img.Pix[i+c] = uint8(min(max(v, 0), 255))
		}
	}
}

// Label writes text with the basic 7x13 face at (x, y) baseline.
func Label(img *image.RGBA, x, y int, text string, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// PNGBytes encodes img as PNG.
func PNGBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// WritePNG saves img under dir and returns the path.
func WritePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	return WriteFile(t, dir, name, PNGBytes(t, img))
}
