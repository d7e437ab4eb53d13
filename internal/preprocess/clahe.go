package preprocess

import (
	"image"
	"math"
)

// Equalize applies contrast limited adaptive histogram equalisation on a
// tiles x tiles grid. Each tile's histogram is clipped at clip times the
// uniform bin height, the excess is spread over all bins, and pixels are
// mapped by bilinear interpolation between the four nearest tile curves.
func Equalize(src *image.Gray, clip float64, tiles int) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewGray(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}
	tiles = max(tiles, 1)

	tilesX, tileW := tileLayout(w, tiles)
	tilesY, tileH := tileLayout(h, tiles)

	at := func(x, y int) uint8 { return src.Pix[src.PixOffset(b.Min.X+x, b.Min.Y+y)] }

	luts := make([][256]uint8, tilesX*tilesY)
	for ty := range tilesY {
		for tx := range tilesX {
			x0, y0 := tx*tileW, ty*tileH
			x1, y1 := min(x0+tileW, w), min(y0+tileH, h)
			var hist [256]int
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					hist[at(x, y)]++
				}
			}
			luts[ty*tilesX+tx] = tileCurve(hist, (x1-x0)*(y1-y0), clip)
		}
	}

	invW, invH := 1/float64(tileW), 1/float64(tileH)
	for y := range h {
		fy := (float64(y)+0.5)*invH - 0.5
		ty1 := int(math.Floor(fy))
		ya := fy - float64(ty1)
		ty2 := min(ty1+1, tilesY-1)
		ty1 = max(ty1, 0)
		for x := range w {
			fx := (float64(x)+0.5)*invW - 0.5
			tx1 := int(math.Floor(fx))
			xa := fx - float64(tx1)
			tx2 := min(tx1+1, tilesX-1)
			tx1 = max(tx1, 0)

			v := at(x, y)
			top := (1-xa)*float64(luts[ty1*tilesX+tx1][v]) + xa*float64(luts[ty1*tilesX+tx2][v])
			bot := (1-xa)*float64(luts[ty2*tilesX+tx1][v]) + xa*float64(luts[ty2*tilesX+tx2][v])
			out.Pix[y*out.Stride+x] = uint8(math.Round((1-ya)*top + ya*bot))
		}
	}
	return out
}

// tileLayout splits n pixels into at most tiles non-empty tiles.
func tileLayout(n, tiles int) (count, size int) {
	count = min(tiles, n)
	size = (n + count - 1) / count
	count = (n + size - 1) / size
	return count, size
}

// tileCurve builds the clipped cumulative mapping for one tile.
func tileCurve(hist [256]int, total int, clip float64) [256]uint8 {
	var lut [256]uint8
	if total == 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return lut
	}

	limit := max(int(clip*float64(total)/256), 1)
	excess := 0
	for i, c := range hist {
		if c > limit {
			excess += c - limit
			hist[i] = limit
		}
	}
	bonus, rest := excess/256, excess%256
	for i := range hist {
		hist[i] += bonus
	}
	if rest > 0 {
		stride := max(256/rest, 1)
		for i := 0; i < 256 && rest > 0; i += stride {
			hist[i]++
			rest--
		}
	}

	scale := 255 / float64(total)
	sum := 0
	for i, c := range hist {
		sum += c
		lut[i] = uint8(min(math.Round(float64(sum)*scale), 255))
	}
	return lut
}
