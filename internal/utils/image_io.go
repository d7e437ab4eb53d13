package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// SupportedImageExtensions lists raster file extensions accepted for loading.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tif", ".tiff", ".webp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedImageExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ImageMetadata captures lightweight file and pixel information.
type ImageMetadata struct {
	Path      string `json:"path,omitempty"`
	Format    string `json:"format"`
	SizeBytes int64  `json:"size_bytes"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// DecodeImage decodes an in-memory raster. Empty input, unknown formats and
// zero-sized images are reported as *ImageIOError.
func DecodeImage(data []byte) (image.Image, ImageMetadata, error) {
	if len(data) == 0 {
		return nil, ImageMetadata{}, &ImageIOError{Op: "decode", Err: errors.New("empty input")}
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ImageMetadata{}, &ImageIOError{Op: "decode", Err: err}
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ImageMetadata{}, &ImageIOError{
			Op:  "decode",
			Err: fmt.Errorf("zero-sized image %dx%d", b.Dx(), b.Dy()),
		}
	}
	return img, ImageMetadata{Format: format, SizeBytes: int64(len(data)), Width: b.Dx(), Height: b.Dy()}, nil
}

// LoadImage reads and decodes an image file.
func LoadImage(path string) (image.Image, ImageMetadata, error) {
	if path == "" {
		return nil, ImageMetadata{}, &ImageIOError{Op: "load", Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		err := &ImageIOError{Op: "load", Path: path, Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
		return nil, ImageMetadata{}, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: reading a user supplied image path is the point
	if err != nil {
		return nil, ImageMetadata{}, &ImageIOError{Op: "load", Path: path, Err: err}
	}
	img, meta, err := DecodeImage(data)
	if err != nil {
		return nil, ImageMetadata{}, err
	}
	meta.Path = path
	return img, meta, nil
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return &ImageIOError{Op: "encode", Err: err}
	}
	return nil
}

// SavePNG writes img to path as PNG, creating parent directories as needed.
func SavePNG(path string, img image.Image) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return &ImageIOError{Op: "save", Path: path, Err: err}
		}
	}
	f, err := os.Create(path) //nolint:gosec // G304: output path comes from the user
	if err != nil {
		return &ImageIOError{Op: "save", Path: path, Err: err}
	}
	if err := EncodePNG(f, img); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return &ImageIOError{Op: "save", Path: path, Err: err}
	}
	return nil
}
