package detector

import (
	"errors"
	"fmt"
)

// ErrBackendUnavailable is returned when the configured backend was not
// compiled into this binary.
var ErrBackendUnavailable = errors.New("detector backend not available in this build")

// ProcessingError wraps a failure inside one detection stage.
type ProcessingError struct {
	Operation string
	Err       error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("detection error in %s: %v", e.Operation, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
