package detector

import (
	"errors"
	"image"

	"github.com/MeKo-Tech/plotmeter/internal/preprocess"
	"github.com/MeKo-Tech/plotmeter/internal/utils"
)

// Input is what every strategy gets to look at.
type Input struct {
	// Source is the color image in the same pixel space as Pre.
	Source image.Image
	Pre    *preprocess.Result
}

// Strategy produces one binary mask of likely boundary pixels. Masks must
// match the preprocessed image size.
type Strategy interface {
	Name() string
	Mask(in Input) (*utils.Mask, error)
}

// ThresholdStrategy contributes the preprocessor's adaptive threshold mask.
type ThresholdStrategy struct{}

// Name implements Strategy.
func (ThresholdStrategy) Name() string { return "threshold" }

// Mask implements Strategy.
func (ThresholdStrategy) Mask(in Input) (*utils.Mask, error) {
	if in.Pre == nil || in.Pre.Binary == nil {
		return nil, errors.New("no threshold mask available")
	}
	return in.Pre.Binary.Clone(), nil
}
