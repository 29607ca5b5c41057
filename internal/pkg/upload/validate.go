package upload

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

// Upload limits for restoration inputs.
const (
	MaxUploadSize = 20 * 1024 * 1024
	MinUploadSize = 100
)

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

var allowedMime = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

var (
	ErrTooLarge    = errors.New("file too large, maximum size is 20MB")
	ErrTooSmall    = errors.New("file too small or corrupt")
	ErrUnsupported = errors.New("unsupported file type, allowed: JPG, PNG, WEBP")
)

// ValidateImageBySniff checks the provided filename (extension) and the first
// bytes against a whitelist of image types. Returns detected mime or an error.
func ValidateImageBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != "" && !allowedExt[ext] {
		return "", ErrUnsupported
	}

	detected := http.DetectContentType(head)

	// Block scriptable types regardless of extension
	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") {
		return "", ErrUnsupported
	}
	if strings.HasPrefix(detected, "text/xml") || strings.HasPrefix(detected, "application/xml") || detected == "image/svg+xml" {
		return "", ErrUnsupported
	}

	if allowedMime[detected] {
		return detected, nil
	}

	return "", ErrUnsupported
}

// ValidateSize checks the upload byte length against the configured bounds.
func ValidateSize(size int) error {
	if size > MaxUploadSize {
		return ErrTooLarge
	}
	if size < MinUploadSize {
		return ErrTooSmall
	}
	return nil
}
