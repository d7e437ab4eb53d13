package scale

import (
	"errors"
	"fmt"
)

// ErrNotSupported is returned by capabilities that have no implementation.
var ErrNotSupported = errors.New("not supported")

// ErrInvalidScale is the sentinel wrapped by every InvalidScaleError.
var ErrInvalidScale = errors.New("invalid scale")

// InvalidScaleError reports a rejected scale input.
type InvalidScaleError struct {
	Field string
	Value any
	Err   error
}

func (e *InvalidScaleError) Error() string {
	return fmt.Sprintf("invalid scale %s %v: %v", e.Field, e.Value, e.Err)
}

func (e *InvalidScaleError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrInvalidScale) match any InvalidScaleError.
func (e *InvalidScaleError) Is(target error) bool { return target == ErrInvalidScale }
