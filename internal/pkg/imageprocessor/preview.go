package imageprocessor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/artimagehub/ArtImageHub/internal/pkg/storage"
)

// Free-tier preview bounds (720p, landscape or portrait).
const (
	MaxFreeWidth  = 1280
	MaxFreeHeight = 720
)

const watermarkText = "ArtImageHub.com"

// CreatePreview renders the downsampled, watermarked free-tier variant of a
// result image. format is ".jpg" or ".webp". Returns the preview path.
func CreatePreview(sourcePath, taskUUID, format string) (string, error) {
	img, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to open result image: %w", err)
	}

	preview := imaging.Fit(img, MaxFreeWidth, MaxFreeHeight, imaging.Lanczos)
	stamped := applyWatermark(preview)

	if err := storage.EnsureDirs(); err != nil {
		return "", err
	}

	if format == ".webp" {
		path := storage.PreviewPath(taskUUID, ".webp")
		if err := saveWebP(stamped, path); err != nil {
			return "", err
		}
		return path, nil
	}

	path := storage.PreviewPath(taskUUID, ".jpg")
	if err := imaging.Save(stamped, path, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to save preview: %w", err)
	}
	return path, nil
}

// applyWatermark draws the site label bottom-right with a dark shadow for
// readability on bright backgrounds.
func applyWatermark(img image.Image) image.Image {
	bounds := img.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, img, bounds.Min, draw.Src)

	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, watermarkText).Ceil()

	padding := 15
	x := bounds.Max.X - textWidth - padding
	y := bounds.Max.Y - padding
	if x < bounds.Min.X {
		x = bounds.Min.X
	}

	drawText(canvas, face, watermarkText, x+1, y+1, color.NRGBA{0, 0, 0, 100})
	drawText(canvas, face, watermarkText, x, y, color.NRGBA{255, 255, 255, 200})

	return canvas
}

func drawText(dst draw.Image, face font.Face, text string, x, y int, col color.Color) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func saveWebP(img image.Image, outputPath string) error {
	output, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("error creating WebP file: %w", err)
	}
	defer output.Close()

	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, 85)
	if err != nil {
		return fmt.Errorf("error creating encoder options: %w", err)
	}

	if err := webp.Encode(output, img, options); err != nil {
		return fmt.Errorf("error encoding WebP image: %w", err)
	}

	return nil
}
