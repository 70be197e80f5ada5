package utils

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
)

// Supported MIME types for plan uploads.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEBMP  = "image/bmp"
	MIMETIFF = "image/tiff"
	MIMEWebP = "image/webp"
	MIMEGIF  = "image/gif"
	MIMEPDF  = "application/pdf"
)

var extensionMIME = map[string]string{
	".jpg":  MIMEJPEG,
	".jpeg": MIMEJPEG,
	".png":  MIMEPNG,
	".bmp":  MIMEBMP,
	".tif":  MIMETIFF,
	".tiff": MIMETIFF,
	".webp": MIMEWebP,
	".gif":  MIMEGIF,
	".pdf":  MIMEPDF,
}

// MIMEFromPath infers a MIME type from the file extension, or "" if unknown.
func MIMEFromPath(path string) string {
	return extensionMIME[strings.ToLower(filepath.Ext(path))]
}

// IsSupportedInput reports whether the path has a supported plan extension.
func IsSupportedInput(path string) bool {
	return MIMEFromPath(path) != ""
}

// SavePNG encodes img as PNG at path, creating parent directories.
func SavePNG(path string, img image.Image) error {
	if img == nil {
		return &ImageProcessingError{Operation: "save", Err: errors.New("input image is nil")}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	f, err := os.Create(path) //nolint:gosec // G304: output path is chosen by the user
	if err != nil {
		return &ImageProcessingError{Operation: "save", Err: err}
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return &ImageProcessingError{Operation: "encode", Err: err}
	}
	if err := f.Close(); err != nil {
		return &ImageProcessingError{Operation: "save", Err: fmt.Errorf("close %s: %w", path, err)}
	}
	return nil
}
