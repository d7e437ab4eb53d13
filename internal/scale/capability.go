package scale

import (
	"context"
	"image"
)

// Detector finds a scale reference printed in the image itself, such as a
// scale bar or ruler.
type Detector interface {
	DetectScale(ctx context.Context, img image.Image) (*Reference, error)
}

// Structure is a recognised object on a plot, such as a house or a pool.
type Structure struct {
	Label  string          `json:"label"`
	Bounds image.Rectangle `json:"bounds"`
}

// Classifier recognises structures inside a measured boundary.
type Classifier interface {
	Classify(ctx context.Context, img image.Image) ([]Structure, error)
}

// Unsupported implements Detector and Classifier by refusing every request.
type Unsupported struct{}

var (
	_ Detector   = Unsupported{}
	_ Classifier = Unsupported{}
)

// DetectScale always returns ErrNotSupported.
func (Unsupported) DetectScale(context.Context, image.Image) (*Reference, error) {
	return nil, ErrNotSupported
}

// Classify always returns ErrNotSupported.
func (Unsupported) Classify(context.Context, image.Image) ([]Structure, error) {
	return nil, ErrNotSupported
}
