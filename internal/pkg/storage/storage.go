package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Directory layout for uploads and restored results.
const (
	UploadDir  = "uploads/original"
	ResultDir  = "uploads/results"
	PreviewDir = "uploads/previews"
)

// EnsureDirs creates the storage directories if they do not exist.
func EnsureDirs() error {
	for _, dir := range []string{UploadDir, ResultDir, PreviewDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// ExtForMime maps an upload content type to the stored file extension.
func ExtForMime(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

// SaveUpload writes uploaded bytes under UploadDir and returns the path.
func SaveUpload(fileID string, content []byte, contentType string) (string, error) {
	if err := EnsureDirs(); err != nil {
		return "", err
	}
	path := filepath.Join(UploadDir, fileID+ExtForMime(contentType))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return path, nil
}

// ResultPath returns the destination path for a task's restored image.
func ResultPath(taskUUID string) string {
	return filepath.Join(ResultDir, taskUUID+"_result.jpg")
}

// PreviewPath returns the destination path for a task's watermarked preview.
func PreviewPath(taskUUID, ext string) string {
	return filepath.Join(PreviewDir, taskUUID+"_720p"+ext)
}
