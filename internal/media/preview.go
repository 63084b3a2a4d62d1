package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"time"

	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"

	"github.com/disintegration/imaging"
)

// Framer grabs a single frame from a video.
type Framer interface {
	Frame(ctx context.Context, input, output string, offset float64) error
}

// PreviewGenerator writes JPEG preview images for scenes.
type PreviewGenerator struct {
	dir     string
	framer  Framer
	width   int
	height  int
	quality int
	log     logging.Logger
}

// NewPreviewGenerator stores previews under dir.
func NewPreviewGenerator(dir string, framer Framer) *PreviewGenerator {
	return &PreviewGenerator{
		dir:     dir,
		framer:  framer,
		width:   640,
		height:  360,
		quality: 85,
		log:     logging.Component("preview"),
	}
}

// Dir returns the previews directory.
func (g *PreviewGenerator) Dir() string {
	return g.dir
}

// PathFor is where the preview of sceneID is written.
func (g *PreviewGenerator) PathFor(sceneID string) string {
	return filepath.Join(g.dir, sceneID+".jpg")
}

// Generate takes a frame from scenePath at a tenth of duration and writes
// it, resized to fit the preview box, to PathFor(sceneID).
func (g *PreviewGenerator) Generate(ctx context.Context, sceneID, scenePath string, duration float64) (path string, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.PreviewGenerationsTotal.WithLabelValues(status).Inc()
		if err == nil {
			metrics.PreviewGenerationDuration.Observe(time.Since(start).Seconds())
		}
	}()

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create previews dir: %w", err)
	}

	frame := filepath.Join(g.dir, "."+sceneID+".frame.png")
	defer func() {
		if err := os.Remove(frame); err != nil && !errors.Is(err, os.ErrNotExist) {
			g.log.Warn("Failed to remove frame %s: %v", frame, err)
		}
	}()

	if err := g.framer.Frame(ctx, scenePath, frame, duration/10); err != nil {
		return "", fmt.Errorf("failed to grab frame from %s: %w", scenePath, err)
	}

	data, err := g.resize(frame)
	if err != nil {
		return "", err
	}

	path = g.PathFor(sceneID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write preview: %w", err)
	}

	g.log.Debug("Generated preview for %s in %v", scenePath, time.Since(start))
	return path, nil
}

func (g *PreviewGenerator) resize(frame string) ([]byte, error) {
	if IsVipsAvailable() {
		data, err := ThumbnailWithVips(frame, g.width, g.height, g.quality)
		if err == nil {
			return data, nil
		}
		g.log.Debug("vips preview failed, falling back to imaging: %v", err)
	}

	img, err := imaging.Open(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to open frame: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, imaging.Fit(img, g.width, g.height, imaging.Lanczos), &jpeg.Options{Quality: g.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
