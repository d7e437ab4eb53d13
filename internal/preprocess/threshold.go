package preprocess

import (
	"image"

	"github.com/MeKo-Tech/plotmeter/internal/utils"
	"github.com/anthonynsimon/bild/blur"
)

// AdaptiveThreshold marks pixels that are darker than their Gaussian-weighted
// neighbourhood mean by more than c. The result is inverted relative to a
// plain binary threshold: dark strokes on a light background become set pixels.
func AdaptiveThreshold(src *image.Gray, block int, c float64) *utils.Mask {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	mask := utils.NewMask(w, h)
	if w == 0 || h == 0 {
		return mask
	}

	// A kernel of length 2*radius+1 covers the block.
	mean := blur.Gaussian(src, float64(block/2))
	mb := mean.Bounds()
	for y := range h {
		row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
		mrow := mean.Pix[mean.PixOffset(mb.Min.X, mb.Min.Y+y):]
		for x := range w {
			if float64(row[x]) <= float64(mrow[x*4])-c {
				mask.Pix[y*w+x] = true
			}
		}
	}
	return mask
}
