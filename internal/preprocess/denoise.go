package preprocess

import (
	"image"

	"github.com/MeKo-Tech/plotmeter/internal/mempool"
	"github.com/chewxy/math32"
)

// minWeight is the smallest patch weight still accumulated.
const minWeight = 1e-3

// weightTable precomputes exp(-d/h²) for integer mean patch distances d
// until the weight drops below minWeight.
func weightTable(h float32) []float32 {
	h2 := h * h
	n := int(-math32.Log(minWeight)*h2) + 1
	lut := make([]float32, n)
	for d := range lut {
		lut[d] = math32.Exp(-float32(d) / h2)
	}
	return lut
}

// Denoise applies non-local-means filtering. Each output pixel is the weighted
// mean of the pixels in its searchWindow neighbourhood, weighted by how similar
// their templateWindow patches are. Patch distances are evaluated per search
// offset with an integral image, so the cost does not grow with the patch size.
func Denoise(src *image.Gray, h float32, templateWindow, searchWindow int) *image.Gray {
	b := src.Bounds()
	w, ht := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, ht))
	if w == 0 || ht == 0 {
		return out
	}
	if h <= 0 || templateWindow < 1 || searchWindow < 1 {
		for y := range ht {
			copy(out.Pix[y*out.Stride:y*out.Stride+w], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
		return out
	}

	tr, sr := templateWindow/2, searchWindow/2
	pad := tr + sr
	pw, ph := w+2*pad, ht+2*pad

	// Border-replicated copy so every patch and offset stays in range.
	padded := mempool.GetFloat32(pw * ph)
	defer mempool.PutFloat32(padded)
	for y := range ph {
		sy := min(max(y-pad, 0), ht-1)
		row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+sy):]
		for x := range pw {
			sx := min(max(x-pad, 0), w-1)
			padded[y*pw+x] = float32(row[sx])
		}
	}

	// The distance region covers every patch centred on an output pixel.
	rw, rh := w+2*tr, ht+2*tr
	iw := rw + 1
	integral := make([]float64, iw*(rh+1))

	acc := mempool.GetFloat32(w * ht)
	defer mempool.PutFloat32(acc)
	wsum := mempool.GetFloat32(w * ht)
	defer mempool.PutFloat32(wsum)

	lut := weightTable(h)
	area := float64((2*tr + 1) * (2*tr + 1))
	side := 2*tr + 1

	for dy := -sr; dy <= sr; dy++ {
		for dx := -sr; dx <= sr; dx++ {
			for y := range rh {
				py := y + sr
				base := py * pw
				shifted := (py + dy) * pw
				rowSum := 0.0
				for x := range rw {
					px := x + sr
					d := padded[base+px] - padded[shifted+px+dx]
					rowSum += float64(d * d)
					integral[(y+1)*iw+x+1] = integral[y*iw+x+1] + rowSum
				}
			}

			for y := range ht {
				top, bottom := y*iw, (y+side)*iw
				for x := range w {
					s := integral[bottom+x+side] - integral[top+x+side] - integral[bottom+x] + integral[top+x]
					d := int(s/area + 0.5)
					if d >= len(lut) {
						continue
					}
					wgt := lut[d]
					i := y*w + x
					acc[i] += wgt * padded[(y+pad+dy)*pw+x+pad+dx]
					wsum[i] += wgt
				}
			}
		}
	}

	for y := range ht {
		for x := range w {
			i := y*w + x
			v := acc[i] / wsum[i]
			out.Pix[y*out.Stride+x] = uint8(min(max(math32.Round(v), 0), 255))
		}
	}
	return out
}
