package service

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"certistage/config"
)

const (
	// Quality settings
	qualityThumb  = 60
	qualityMedium = 75
	// Size settings (max dimension)
	maxSizeThumb  = 300
	maxSizeMedium = 800
)

// Thumbnail sizes accepted by OptimizeImage
const (
	SizeThumb  = "thumb"
	SizeMedium = "medium"
)

// OptimizeImage shrinks an image for the asset picker and re-encodes it as JPEG.
// size is "thumb" or "medium"; anything else falls back to medium.
func OptimizeImage(img image.Image, size string) ([]byte, error) {
	var maxDim, quality int
	switch size {
	case SizeThumb:
		maxDim, quality = maxSizeThumb, qualityThumb
	case SizeMedium:
		maxDim, quality = maxSizeMedium, qualityMedium
	default:
		maxDim, quality = maxSizeMedium, qualityMedium
		config.Log.Warnf("⚠️  Unknown size '%s', defaulting to medium", size)
	}

	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	resized := img
	if width > maxDim || height > maxDim {
		// imaging.Fit keeps the aspect ratio inside a maxDim box
		resized = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
		config.Log.WithFields(logrus.Fields{
			"from": fmt.Sprintf("%dx%d", width, height),
			"to":   fmt.Sprintf("%dx%d", resized.Bounds().Dx(), resized.Bounds().Dy()),
		}).Debug("🔄 Resizing image")
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode to JPEG: %w", err)
	}
	return buf.Bytes(), nil
}
