package utils

import "image"

// Mask is an owned binary raster. Pix is row-major with no padding.
type Mask struct {
	Width  int
	Height int
	Pix    []bool
}

// NewMask allocates an empty mask.
func NewMask(w, h int) *Mask {
	return &Mask{Width: w, Height: h, Pix: make([]bool, w*h)}
}

// At reports whether (x, y) is set. Out-of-range coordinates read as unset.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x]
}

// Set marks (x, y). Out-of-range coordinates are ignored.
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = v
}

// Count returns the number of set pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	out := &Mask{Width: m.Width, Height: m.Height, Pix: make([]bool, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// SameSize reports whether o has the dimensions of m.
func (m *Mask) SameSize(o *Mask) bool {
	return o != nil && m.Width == o.Width && m.Height == o.Height
}

// Or sets every pixel of m that is set in o. Sizes must match.
func (m *Mask) Or(o *Mask) {
	for i, v := range o.Pix {
		if v {
			m.Pix[i] = true
		}
	}
}

// Gray renders the mask as a black/white image, set pixels white.
func (m *Mask) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		if v {
			g.Pix[i] = 255
		}
	}
	return g
}

// MaskFromGray sets every pixel whose value is at least threshold.
func MaskFromGray(g *image.Gray, threshold uint8) *Mask {
	b := g.Bounds()
	m := NewMask(b.Dx(), b.Dy())
	for y := range b.Dy() {
		row := g.Pix[g.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := range b.Dx() {
			m.Pix[y*m.Width+x] = row[x] >= threshold
		}
	}
	return m
}
