package imageprocessor

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2/log"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
)

func init() {
	// Register Nikon and Canon maker notes
	exif.RegisterParsers(mknote.All...)
}

// ExtractMetadata reads EXIF metadata from an uploaded photo and returns it as
// a JSON string for storage on the task. Old scans often carry no EXIF at all,
// so a missing block is not an error.
func ExtractMetadata(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("error opening image file: %w", err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		log.Infof("No EXIF data found for %s: %v", filePath, err)
		return "", nil
	}

	allMetadata := make(map[string]interface{})
	for _, tag := range []exif.FieldName{
		exif.Make, exif.Model, exif.Software, exif.Artist,
		exif.DateTime, exif.DateTimeOriginal, exif.DateTimeDigitized,
		exif.ExposureTime, exif.FNumber, exif.ISOSpeedRatings,
		exif.FocalLength, exif.Flash, exif.WhiteBalance,
	} {
		if val, tagErr := x.Get(tag); tagErr == nil {
			allMetadata[string(tag)] = val.String()
		}
	}

	if len(allMetadata) == 0 {
		return "", nil
	}

	data, err := json.Marshal(allMetadata)
	if err != nil {
		return "", fmt.Errorf("error serializing metadata: %w", err)
	}
	return string(data), nil
}
