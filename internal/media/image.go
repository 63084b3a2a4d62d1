package media

import (
	"fmt"
	"image"
	"os"

	"media-ingest/internal/logging"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageDimension is the largest width or height decoded at full size.
	MaxImageDimension = 4096

	// MaxImagePixels caps the decoded pixel count (~80MB as RGBA).
	MaxImagePixels = 20_000_000
)

// ImageInfo is the metadata read from an image file on import.
type ImageInfo struct {
	Width  int
	Height int
	// Hash is the 64-bit difference hash as 16 hex digits.
	Hash string
}

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions returns image dimensions without decoding pixel data.
func GetImageDimensions(path string) (*ImageDimensions, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, err
	}

	return &ImageDimensions{
		Width:  config.Width,
		Height: config.Height,
	}, nil
}

// constrainedSize scales width x height down to fit both limits, keeping
// the aspect ratio. ok is false when no scaling is needed.
func constrainedSize(width, height, maxDimension, maxPixels int) (w, h int, ok bool) {
	if width <= maxDimension && height <= maxDimension && width*height <= maxPixels {
		return width, height, false
	}

	w, h = width, height
	if w > maxDimension || h > maxDimension {
		if w > h {
			h = h * maxDimension / w
			w = maxDimension
		} else {
			w = w * maxDimension / h
			h = maxDimension
		}
	}

	if w*h > maxPixels {
		scale := float64(maxPixels) / float64(w*h)
		w = int(float64(w) * scale)
		h = int(float64(h) * scale)
	}
	return max(w, 1), max(h, 1), true
}

// LoadImageConstrained decodes an image with EXIF orientation applied,
// downscaling it when it exceeds maxDimension or maxPixels.
func LoadImageConstrained(path string, maxDimension, maxPixels int) (image.Image, error) {
	dimensions, err := GetImageDimensions(path)
	if err != nil {
		logging.Debug("Could not get image dimensions for %s: %v, loading unconstrained", path, err)
		return imaging.Open(path, imaging.AutoOrientation(true))
	}

	w, h, constrain := constrainedSize(dimensions.Width, dimensions.Height, maxDimension, maxPixels)
	if constrain && IsVipsAvailable() {
		if img, err := LoadImageWithVips(path, w, h); err == nil {
			return img, nil
		}
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	if !constrain {
		return img, nil
	}

	logging.Debug("Constraining large image %s from %dx%d to %dx%d", path, dimensions.Width, dimensions.Height, w, h)
	return imaging.Resize(img, w, h, imaging.Lanczos), nil
}

// ReadImageInfo reads the dimensions and perceptual hash of an image.
func ReadImageInfo(path string) (ImageInfo, error) {
	dims, err := GetImageDimensions(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to read dimensions of %s: %w", path, err)
	}

	img, err := LoadImageConstrained(path, MaxImageDimension, MaxImagePixels)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return ImageInfo{
		Width:  dims.Width,
		Height: dims.Height,
		Hash:   FormatHash(DifferenceHash(img)),
	}, nil
}
