package utils

import "fmt"

// ImageIOError reports a failure to read, decode, encode or write an image.
// Path is empty for in-memory data.
type ImageIOError struct {
	Op   string
	Path string
	Err  error
}

func (e *ImageIOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("image %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("image %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ImageIOError) Unwrap() error { return e.Err }
