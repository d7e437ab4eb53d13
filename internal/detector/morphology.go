package detector

import (
	"github.com/MeKo-Tech/plotmeter/internal/mempool"
	"github.com/MeKo-Tech/plotmeter/internal/utils"
)

// Dilate grows set regions with a size x size square element, iterations
// times. The input is not modified.
func Dilate(m *utils.Mask, size, iterations int) *utils.Mask {
	out := m.Clone()
	if size <= 1 {
		return out
	}
	for range iterations {
		out = squarePass(out, size, true)
	}
	return out
}

// Erode shrinks set regions with a size x size square element, iterations
// times. Pixels outside the mask do not erode the border.
func Erode(m *utils.Mask, size, iterations int) *utils.Mask {
	out := m.Clone()
	if size <= 1 {
		return out
	}
	for range iterations {
		out = squarePass(out, size, false)
	}
	return out
}

// Close dilates then erodes with the same element and iteration count,
// filling gaps narrower than the element.
func Close(m *utils.Mask, size, iterations int) *utils.Mask {
	if iterations <= 0 {
		return m.Clone()
	}
	return Erode(Dilate(m, size, iterations), size, iterations)
}

// squarePass applies one dilation (grow) or erosion (!grow). The square
// element is separable, so rows and columns are processed independently.
func squarePass(m *utils.Mask, size int, grow bool) *utils.Mask {
	w, h := m.Width, m.Height
	lo := -(size - 1) / 2
	hi := size / 2

	tmp := mempool.GetBool(w * h)
	defer mempool.PutBool(tmp)

	for y := range h {
		row := m.Pix[y*w : (y+1)*w]
		for x := range w {
			tmp[y*w+x] = windowValue(row, x+lo, x+hi, 1, grow)
		}
	}

	out := utils.NewMask(w, h)
	for x := range w {
		col := tmp[x:]
		for y := range h {
			out.Pix[y*w+x] = windowValue(col, (y+lo)*w, (y+hi)*w, w, grow)
		}
	}
	return out
}

// windowValue reports whether any (grow) or all (!grow) in-range entries of
// buf[from..to] with the given stride are set.
func windowValue(buf []bool, from, to, stride int, grow bool) bool {
	from = max(from, 0)
	// Walk back to the nearest aligned in-range offset.
	for to >= len(buf) {
		to -= stride
	}
	for i := from; i <= to; i += stride {
		if buf[i] == grow {
			return grow
		}
	}
	return !grow
}
