package preprocess

import "fmt"

// InvalidImageError reports input that cannot be measured at all: undecodable
// bytes, a nil image or zero dimensions. It is fatal for the request.
type InvalidImageError struct {
	Reason string
	Err    error
}

func (e *InvalidImageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid image: %s: %v", e.Reason, e.Err)
	}
	return "invalid image: " + e.Reason
}

func (e *InvalidImageError) Unwrap() error { return e.Err }
