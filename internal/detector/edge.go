package detector

import (
	"errors"
	"image"
	"math"
	"sort"

	"github.com/MeKo-Tech/plotmeter/internal/utils"
	"gonum.org/v1/gonum/stat"
)

// EdgeStrategy runs Canny edge detection on the enhanced grayscale image.
type EdgeStrategy struct {
	Low, High float64
}

// Name implements Strategy.
func (*EdgeStrategy) Name() string { return "edges" }

// Mask implements Strategy.
func (es *EdgeStrategy) Mask(in Input) (*utils.Mask, error) {
	if in.Pre == nil || in.Pre.Enhanced == nil {
		return nil, errors.New("no grayscale image")
	}
	low, high := es.Low, es.High
	if low == 0 && high == 0 {
		low, high = AutoThresholds(in.Pre.Enhanced)
	}
	return Canny(in.Pre.Enhanced, low, high), nil
}

// AutoThresholds derives Canny thresholds from the median intensity, 0.67x
// and 1.33x of it, clamped to 0..255.
func AutoThresholds(g *image.Gray) (low, high float64) {
	b := g.Bounds()
	vals := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			vals = append(vals, float64(g.GrayAt(x, y).Y))
		}
	}
	if len(vals) == 0 {
		return 0, 0
	}
	sort.Float64s(vals)
	median := stat.Quantile(0.5, stat.Empirical, vals, nil)
	return math.Max(0, 0.67*median), math.Min(255, 1.33*median)
}

// gaussian5 is the 5x5 smoothing kernel (sigma ~1.4), sum 273.
var gaussian5 = [5][5]float64{
	{1, 4, 7, 4, 1},
	{4, 16, 26, 16, 4},
	{7, 26, 41, 26, 7},
	{4, 16, 26, 16, 4},
	{1, 4, 7, 4, 1},
}

// Canny returns a mask of edge pixels. Gradient magnitudes are computed with
// Sobel on 0..255 intensities after Gaussian smoothing, thinned by
// non-maximum suppression, and kept when they exceed high or connect to such
// a pixel through pixels above low.
func Canny(g *image.Gray, low, high float64) *utils.Mask {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	mask := utils.NewMask(w, h)
	if w < 3 || h < 3 {
		return mask
	}

	clampXY := func(x, y int) int {
		return min(max(y, 0), h-1)*w + min(max(x, 0), w-1)
	}

	src := make([]float64, w*h)
	for y := range h {
		row := g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := range w {
			src[y*w+x] = float64(row[x])
		}
	}

	blurred := make([]float64, w*h)
	for y := range h {
		for x := range w {
			sum := 0.0
			for ky := -2; ky <= 2; ky++ {
				for kx := -2; kx <= 2; kx++ {
					sum += src[clampXY(x+kx, y+ky)] * gaussian5[ky+2][kx+2]
				}
			}
			blurred[y*w+x] = sum / 273
		}
	}

	mag := make([]float64, w*h)
	dir := make([]uint8, w*h)
	for y := range h {
		for x := range w {
			p := func(dx, dy int) float64 { return blurred[clampXY(x+dx, y+dy)] }
			gx := -p(-1, -1) + p(1, -1) - 2*p(-1, 0) + 2*p(1, 0) - p(-1, 1) + p(1, 1)
			gy := -p(-1, -1) - 2*p(0, -1) - p(1, -1) + p(-1, 1) + 2*p(0, 1) + p(1, 1)
			i := y*w + x
			mag[i] = math.Hypot(gx, gy)
			dir[i] = quantizeDirection(math.Atan2(gy, gx))
		}
	}

	// Non-maximum suppression; the outer frame never holds an edge.
	nms := make([]float64, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			var n1, n2 float64
			switch dir[i] {
			case 0:
				n1, n2 = mag[i-1], mag[i+1]
			case 1:
				n1, n2 = mag[i-w-1], mag[i+w+1]
			case 2:
				n1, n2 = mag[i-w], mag[i+w]
			default:
				n1, n2 = mag[i-w+1], mag[i+w-1]
			}
			if mag[i] >= n1 && mag[i] >= n2 {
				nms[i] = mag[i]
			}
		}
	}

	// Hysteresis: grow strong edges through connected weak ones.
	stack := make([]int, 0, 256)
	for i, v := range nms {
		if v >= high && v > 0 && !mask.Pix[i] {
			mask.Pix[i] = true
			stack = append(stack, i)
		}
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if !mask.Pix[j] && nms[j] >= low && nms[j] > 0 {
					mask.Pix[j] = true
					stack = append(stack, j)
				}
			}
		}
	}
	return mask
}

// quantizeDirection maps a gradient angle to one of four neighbour axes:
// 0 horizontal, 1 down-right diagonal, 2 vertical, 3 down-left diagonal.
func quantizeDirection(angle float64) uint8 {
	a := angle
	if a < 0 {
		a += math.Pi
	}
	switch {
	case a < math.Pi/8 || a >= 7*math.Pi/8:
		return 0
	case a < 3*math.Pi/8:
		return 1
	case a < 5*math.Pi/8:
		return 2
	default:
		return 3
	}
}
