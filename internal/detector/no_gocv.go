//go:build !gocv

package detector

import (
	"image"

	"github.com/MeKo-Tech/plotmeter/internal/preprocess"
)

// GoCVAvailable reports whether the binary was built with the OpenCV backend.
const GoCVAvailable = false

func detectGoCV(image.Image, preprocess.Config, Config) (*Detection, error) {
	return nil, &ProcessingError{Operation: "gocv", Err: ErrBackendUnavailable}
}
