package media

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

type fakeFramer struct {
	width, height int
	err           error
	offset        float64
}

func (f *fakeFramer) Frame(_ context.Context, _, output string, offset float64) error {
	f.offset = offset
	if f.err != nil {
		return f.err
	}
	img := horizontalGradient(f.width, f.height, false)
	file, err := os.Create(output)
	if err != nil {
		return err
	}
	defer file.Close()
	return encodePNG(file, img)
}

func TestPreviewGenerate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "previews")
	framer := &fakeFramer{width: 1280, height: 720}
	gen := NewPreviewGenerator(dir, framer)

	path, err := gen.Generate(context.Background(), "sc_1", "/videos/a.mp4", 100)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if path != filepath.Join(dir, "sc_1.jpg") {
		t.Errorf("Expected preview at sc_1.jpg, got %s", path)
	}
	if framer.offset != 10 {
		t.Errorf("Expected frame at 10s, got %v", framer.offset)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open preview: %v", err)
	}
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("Failed to decode preview: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("Expected jpeg, got %s", format)
	}
	if cfg.Width > 640 || cfg.Height > 360 {
		t.Errorf("Expected preview to fit 640x360, got %dx%d", cfg.Width, cfg.Height)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("Expected only the preview in the directory, got %d entries", len(entries))
	}
}

func TestPreviewGenerateFramerError(t *testing.T) {
	dir := t.TempDir()
	gen := NewPreviewGenerator(dir, &fakeFramer{err: errors.New("no video stream")})

	if _, err := gen.Generate(context.Background(), "sc_1", "/videos/a.mp4", 0); err == nil {
		t.Error("Expected error when the frame grab fails")
	}
	if _, err := os.Stat(gen.PathFor("sc_1")); !os.IsNotExist(err) {
		t.Error("Expected no preview file after failure")
	}
}

func encodePNG(f *os.File, img image.Image) error {
	return png.Encode(f, img)
}
