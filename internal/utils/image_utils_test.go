package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/plotmeter/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRGBADoesNotAlias(t *testing.T) {
	src := solidRGBA(4, 4, color.RGBA{10, 20, 30, 255})
	dst := ToRGBA(src)
	dst.Set(0, 0, color.RGBA{255, 0, 0, 255})
	assert.Equal(t, color.RGBA{10, 20, 30, 255}, src.RGBAAt(0, 0))
}

func TestToRGBAMovesOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 9, 8))
	src.Set(5, 5, color.RGBA{1, 2, 3, 255})
	dst := ToRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 4, 3), dst.Bounds())
	assert.Equal(t, color.RGBA{1, 2, 3, 255}, dst.RGBAAt(0, 0))
}

func TestToGray(t *testing.T) {
	src := solidRGBA(3, 2, color.RGBA{255, 0, 0, 255})
	g := ToGray(src)
	assert.Equal(t, uint8(76), g.GrayAt(1, 1).Y)

	gray := image.NewGray(image.Rect(0, 0, 2, 2))
	gray.SetGray(1, 1, color.Gray{Y: 200})
	clone := ToGray(gray)
	clone.SetGray(1, 1, color.Gray{Y: 1})
	assert.Equal(t, uint8(200), gray.GrayAt(1, 1).Y)
}

func TestIsGrayscale(t *testing.T) {
	assert.True(t, IsGrayscale(image.NewGray(image.Rect(0, 0, 2, 2))))
	assert.True(t, IsGrayscale(solidRGBA(2, 2, color.RGBA{40, 40, 40, 255})))
	assert.False(t, IsGrayscale(solidRGBA(2, 2, color.RGBA{40, 41, 40, 255})))
}

func TestDrawLineThickness(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 20, 20))
	red := color.RGBA{255, 0, 0, 255}
	DrawLine(dst, geometry.Point{X: 2, Y: 10}, geometry.Point{X: 17, Y: 10}, red, 2)

	assert.Equal(t, red, dst.RGBAAt(10, 10))
	assert.Equal(t, red, dst.RGBAAt(10, 11))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(10, 9))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(10, 12))
}

func TestDrawPolygonClosesPath(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 20, 20))
	blue := color.RGBA{0, 0, 255, 255}
	pts := []geometry.Point{{X: 2, Y: 2}, {X: 15, Y: 2}, {X: 15, Y: 15}, {X: 2, Y: 15}}
	DrawPolygon(dst, pts, blue, 1)

	assert.Equal(t, blue, dst.RGBAAt(2, 8), "closing edge")
	assert.Equal(t, blue, dst.RGBAAt(8, 2))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(8, 8))

	open := image.NewRGBA(image.Rect(0, 0, 20, 20))
	DrawPolyline(open, pts, blue, 1)
	assert.Equal(t, color.RGBA{}, open.RGBAAt(2, 8))
}

func TestFillPolygonBlends(t *testing.T) {
	dst := solidRGBA(10, 10, color.RGBA{0, 0, 0, 255})
	pts := []geometry.Point{{X: 2, Y: 2}, {X: 8, Y: 2}, {X: 8, Y: 8}, {X: 2, Y: 8}}
	FillPolygon(dst, pts, color.RGBA{0, 200, 0, 255}, 0.5)

	assert.Equal(t, color.RGBA{0, 100, 0, 255}, dst.RGBAAt(5, 5))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, dst.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, dst.RGBAAt(9, 9))
}

func TestDrawRect(t *testing.T) {
	dst := solidRGBA(6, 6, color.RGBA{100, 100, 100, 255})
	DrawRect(dst, image.Rect(1, 1, 3, 3), color.RGBA{0, 0, 0, 255}, 1)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, dst.RGBAAt(2, 2))
	assert.Equal(t, color.RGBA{100, 100, 100, 255}, dst.RGBAAt(3, 3))
	require.NotPanics(t, func() {
		DrawRect(dst, image.Rect(-5, -5, 50, 50), color.RGBA{}, 0.2)
	})
}
