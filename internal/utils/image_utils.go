package utils

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"

	"github.com/MeKo-Tech/plotmeter/internal/geometry"
	"github.com/disintegration/imaging"
)

// ToRGBA returns a new RGBA copy of img with its origin moved to (0,0). The
// source is never written.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// ToGray converts img to 8-bit luminance with the BT.601 weights.
// Gray input is cloned rather than converted again.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	if g, ok := img.(*image.Gray); ok {
		out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		for y := range b.Dy() {
			copy(out.Pix[y*out.Stride:y*out.Stride+b.Dx()], g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return out
	}
	src := imaging.Clone(img)
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := range b.Dy() {
		row := src.Pix[y*src.Stride:]
		for x := range b.Dx() {
			r, g, bl := float64(row[x*4]), float64(row[x*4+1]), float64(row[x*4+2])
			out.Pix[y*out.Stride+x] = uint8(math.Round(0.299*r + 0.587*g + 0.114*bl))
		}
	}
	return out
}

// IsGrayscale reports whether every pixel of img has equal RGB channels.
func IsGrayscale(img image.Image) bool {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return true
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r != g || g != bl {
				return false
			}
		}
	}
	return true
}

// DrawRect fills rect in dst with col blended at alpha (0..1).
func DrawRect(dst *image.RGBA, rect image.Rectangle, col color.RGBA, alpha float64) {
	rect = rect.Intersect(dst.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			blendPixel(dst, x, y, col, alpha)
		}
	}
}

// DrawPolygon draws connected line segments and closes the polygon.
func DrawPolygon(dst *image.RGBA, pts []geometry.Point, col color.Color, thickness int) {
	if len(pts) < 2 {
		return
	}
	for i := range pts {
		DrawLine(dst, pts[i], pts[(i+1)%len(pts)], col, thickness)
	}
}

// DrawPolyline draws connected line segments without closing the path.
func DrawPolyline(dst *image.RGBA, pts []geometry.Point, col color.Color, thickness int) {
	for i := 1; i < len(pts); i++ {
		DrawLine(dst, pts[i-1], pts[i], col, thickness)
	}
}

// DrawLine draws a segment using a Bresenham walk stamped with a square pen.
func DrawLine(dst *image.RGBA, a, b geometry.Point, col color.Color, thickness int) {
	x0, y0 := int(math.Round(a.X)), int(math.Round(a.Y))
	x1, y1 := int(math.Round(b.X)), int(math.Round(b.Y))
	dx := absInt(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -absInt(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		drawThickPoint(dst, x0, y0, col, thickness)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// drawThickPoint stamps a thickness x thickness square whose top-left is
// biased towards the origin for even sizes.
func drawThickPoint(dst *image.RGBA, x, y int, col color.Color, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	lo := -(thickness - 1) / 2
	hi := thickness / 2
	b := dst.Bounds()
	for yy := y + lo; yy <= y+hi; yy++ {
		for xx := x + lo; xx <= x+hi; xx++ {
			if image.Pt(xx, yy).In(b) {
				dst.Set(xx, yy, col)
			}
		}
	}
}

// FillPolygon blends col into every pixel whose centre lies inside the
// polygon (even-odd rule). alpha is the weight of col, 0..1.
func FillPolygon(dst *image.RGBA, pts []geometry.Point, col color.RGBA, alpha float64) {
	if len(pts) < 3 || alpha <= 0 {
		return
	}
	b := dst.Bounds()
	bounds := geometry.BoundsOf(pts)
	minY := max(b.Min.Y, int(math.Floor(bounds.MinY)))
	maxY := min(b.Max.Y-1, int(math.Ceil(bounds.MaxY)))

	xs := make([]float64, 0, 8)
	for y := minY; y <= maxY; y++ {
		cy := float64(y) + 0.5
		xs = xs[:0]
		for i := range pts {
			p, q := pts[i], pts[(i+1)%len(pts)]
			if (p.Y <= cy && q.Y > cy) || (q.Y <= cy && p.Y > cy) {
				xs = append(xs, p.X+(cy-p.Y)*(q.X-p.X)/(q.Y-p.Y))
			}
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			x0 := max(b.Min.X, int(math.Ceil(xs[i]-0.5)))
			x1 := min(b.Max.X-1, int(math.Floor(xs[i+1]-0.5)))
			for x := x0; x <= x1; x++ {
				blendPixel(dst, x, y, col, alpha)
			}
		}
	}
}

func blendPixel(dst *image.RGBA, x, y int, col color.RGBA, alpha float64) {
	if alpha > 1 {
		alpha = 1
	}
	i := dst.PixOffset(x, y)
	px := dst.Pix[i : i+4 : i+4]
	mix := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a)*(1-alpha) + float64(b)*alpha))
	}
	px[0] = mix(px[0], col.R)
	px[1] = mix(px[1], col.G)
	px[2] = mix(px[2], col.B)
	px[3] = mix(px[3], col.A)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
