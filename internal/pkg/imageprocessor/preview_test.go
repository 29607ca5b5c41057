package imageprocessor

import (
	"image"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

func writeTestImage(t *testing.T, width, height int) string {
	t.Helper()
	img := imaging.New(width, height, image.White.C)
	path := filepath.Join(t.TempDir(), "result.jpg")
	if err := imaging.Save(img, path, imaging.JPEGQuality(90)); err != nil {
		t.Fatalf("failed to write test image: %v", err)
	}
	return path
}

func TestCreatePreviewDownsamplesTo720p(t *testing.T) {
	source := writeTestImage(t, 3000, 2000)
	t.Chdir(t.TempDir())

	previewPath, err := CreatePreview(source, "task-123", ".jpg")
	if err != nil {
		t.Fatalf("CreatePreview failed: %v", err)
	}
	if !strings.HasSuffix(previewPath, "task-123_720p.jpg") {
		t.Fatalf("unexpected preview path: %s", previewPath)
	}

	preview, err := imaging.Open(previewPath)
	if err != nil {
		t.Fatalf("failed to open preview: %v", err)
	}
	bounds := preview.Bounds()
	if bounds.Dx() > MaxFreeWidth || bounds.Dy() > MaxFreeHeight {
		t.Fatalf("preview %dx%d exceeds %dx%d", bounds.Dx(), bounds.Dy(), MaxFreeWidth, MaxFreeHeight)
	}
	// Aspect ratio preserved: 3000x2000 fit into 1280x720 lands at 1080x720
	if bounds.Dx() != 1080 || bounds.Dy() != 720 {
		t.Fatalf("preview %dx%d, want 1080x720", bounds.Dx(), bounds.Dy())
	}
}

func TestCreatePreviewKeepsSmallImages(t *testing.T) {
	source := writeTestImage(t, 640, 480)
	t.Chdir(t.TempDir())

	previewPath, err := CreatePreview(source, "task-small", ".jpg")
	if err != nil {
		t.Fatalf("CreatePreview failed: %v", err)
	}

	preview, err := imaging.Open(previewPath)
	if err != nil {
		t.Fatalf("failed to open preview: %v", err)
	}
	bounds := preview.Bounds()
	if bounds.Dx() != 640 || bounds.Dy() != 480 {
		t.Fatalf("small image was resized to %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestCreatePreviewMissingSource(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := CreatePreview("does-not-exist.jpg", "task-x", ".jpg"); err == nil {
		t.Fatalf("expected error for missing source")
	}
}
