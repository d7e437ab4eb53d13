package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/plotmeter/internal/geometry"
	"github.com/MeKo-Tech/plotmeter/internal/measure"
	"github.com/MeKo-Tech/plotmeter/internal/testutil"
)

var square = []geometry.Point{{X: 100, Y: 100}, {X: 180, Y: 100}, {X: 180, Y: 180}, {X: 100, Y: 180}}

func result() measure.Result {
	return measure.Result{LineLength: "40.00", Area: "100.00", Unit: "meters"}
}

func TestOverlay_DoesNotMutateInput(t *testing.T) {
	img := testutil.Canvas(200, 200, testutil.White)
	before := append([]byte(nil), img.Pix...)

	out := Overlay(img, square, result(), DefaultOptions())
	require.NotNil(t, out)
	assert.Equal(t, before, img.Pix)
	assert.NotEqual(t, img.Pix, out.Pix)
	assert.Equal(t, img.Bounds(), out.Bounds())
}

func TestOverlay_FillAndStroke(t *testing.T) {
	img := testutil.Canvas(200, 200, testutil.White)
	out := Overlay(img, square, result(), DefaultOptions())

	// Interior: 70% white + 30% green.
	c := out.RGBAAt(140, 140)
	assert.InDelta(t, 179, int(c.R), 2)
	assert.InDelta(t, 255, int(c.G), 1)
	assert.InDelta(t, 179, int(c.B), 2)

	// Stroke on the top edge.
	assert.Equal(t, color.RGBA{B: 255, A: 255}, out.RGBAAt(140, 100))

	// Far outside stays white.
	assert.Equal(t, testutil.White, out.RGBAAt(195, 195))
}

func TestOverlay_Labels(t *testing.T) {
	img := testutil.Canvas(300, 100, testutil.White)
	out := Overlay(img, nil, result(), DefaultOptions())

	dark := 0
	for y := 15; y < 35; y++ {
		for x := 8; x < 60; x++ {
			if out.RGBAAt(x, y).R < 200 {
				dark++
			}
		}
	}
	assert.Positive(t, dark, "label backing box expected")

	opts := DefaultOptions()
	opts.Labels = false
	plain := Overlay(img, nil, result(), opts)
	assert.Equal(t, img.Pix, plain.Pix)
}

func TestLabels(t *testing.T) {
	l := Labels(result())
	assert.Equal(t, "Length: 40.00 meters", l[0])
	assert.Equal(t, "Area: 100.00 meters²", l[1])
}

func TestOverlay_NilImage(t *testing.T) {
	assert.Nil(t, Overlay(nil, square, result(), DefaultOptions()))
}

func TestOverlay_OffsetImage(t *testing.T) {
	base := testutil.Canvas(100, 100, testutil.White)
	sub := base.SubImage(image.Rect(20, 20, 80, 80))
	out := Overlay(sub, nil, result(), Options{})
	assert.Equal(t, image.Rect(0, 0, 60, 60), out.Bounds())
}

func TestEncodePNG(t *testing.T) {
	out := Overlay(testutil.Canvas(50, 50, testutil.White), nil, result(), DefaultOptions())
	var buf bytes.Buffer
	require.NoError(t, EncodePNG(&buf, out))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 50, decoded.Bounds().Dx())
}
