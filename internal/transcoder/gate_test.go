package transcoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeMedia is the body of a fake media file: "video codec|audio codec".
func fakeMedia(video, audio string) []byte {
	return []byte(video + "|" + audio)
}

type fakeProber struct{}

func (fakeProber) Probe(_ context.Context, path string) (*ProbeResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	video, audio, _ := strings.Cut(string(data), "|")
	res := &ProbeResult{}
	if video != "" {
		res.Streams = append(res.Streams, Stream{Index: 0, CodecType: "video", CodecName: video, Width: 640, Height: 480})
	}
	if audio != "" {
		res.Streams = append(res.Streams, Stream{Index: 1, CodecType: "audio", CodecName: audio})
	}
	return res, nil
}

type fakeEncoder struct {
	mu     sync.Mutex
	calls  int
	output []byte
	err    error
	delay  time.Duration
	args   []string
}

func (e *fakeEncoder) Encode(ctx context.Context, input, output string, args []string) error {
	e.mu.Lock()
	e.calls++
	e.args = args
	e.mu.Unlock()

	// Real encoders create the output before they fail.
	if err := os.WriteFile(output, []byte("partial"), 0o644); err != nil {
		return err
	}
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if e.err != nil {
		return e.err
	}
	body := e.output
	if body == nil {
		body = fakeMedia("h264", "aac")
	}
	return os.WriteFile(output, body, 0o644)
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestTranscodePassLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "b.mp4")
	writeFile(t, input, fakeMedia("h264", "aac"))

	enc := &fakeEncoder{}
	gate := New(fakeProber{}, enc, Config{})

	res, err := gate.Transcode(context.Background(), input)
	if err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	if res.Decision != Pass {
		t.Errorf("Expected Pass, got %v", res.Decision)
	}
	if res.Path != input {
		t.Errorf("Expected path %s, got %s", input, res.Path)
	}
	if res.OriginalPath != "" {
		t.Errorf("Expected no original path, got %s", res.OriginalPath)
	}
	if enc.calls != 0 {
		t.Errorf("Expected encoder not to run, got %d calls", enc.calls)
	}
	if names := listDir(t, dir); len(names) != 1 {
		t.Errorf("Expected only the input in the directory, got %v", names)
	}
}

func TestTranscodeConvertsAndRenamesOriginal(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "a.3gp")
	writeFile(t, input, fakeMedia("h263", "amr_nb"))

	enc := &fakeEncoder{}
	gate := New(fakeProber{}, enc, Config{Args: []string{"-c:v", "libx264"}})

	res, err := gate.Transcode(context.Background(), input)
	if err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}

	expected := filepath.Join(dir, "a.mp4")
	marker := filepath.Join(dir, "$_a.3gp")

	if res.Decision != TranscodeRequired {
		t.Errorf("Expected TranscodeRequired, got %v", res.Decision)
	}
	if res.Path != expected {
		t.Errorf("Expected output %s, got %s", expected, res.Path)
	}
	if res.OriginalPath != marker {
		t.Errorf("Expected original at %s, got %s", marker, res.OriginalPath)
	}
	if !fileExists(expected) {
		t.Error("Expected canonical output to exist")
	}
	if !fileExists(marker) {
		t.Error("Expected renamed original to exist")
	}
	if fileExists(input) {
		t.Error("Expected input name to be free")
	}
	if fileExists(partialPath(expected)) {
		t.Error("Expected partial output to be gone")
	}
	if len(enc.args) != 2 || enc.args[1] != "libx264" {
		t.Errorf("Expected configured args, got %v", enc.args)
	}

	probe, err := fakeProber{}.Probe(context.Background(), expected)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if Decide(expected, probe) != Pass {
		t.Error("Expected output to pass the policy")
	}
}

func TestTranscodeSameExtension(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "clip.mp4")
	writeFile(t, input, fakeMedia("hevc", "aac"))

	gate := New(fakeProber{}, &fakeEncoder{}, Config{})

	res, err := gate.Transcode(context.Background(), input)
	if err != nil {
		t.Fatalf("Transcode failed: %v", err)
	}
	if res.Path != input {
		t.Errorf("Expected canonical path %s, got %s", input, res.Path)
	}
	if !fileExists(filepath.Join(dir, "$_clip.mp4")) {
		t.Error("Expected renamed original to exist")
	}

	data, _ := os.ReadFile(input)
	if string(data) != "h264|aac" {
		t.Errorf("Expected converted content at canonical path, got %q", data)
	}
}

func TestTranscodeEncoderFailureLeavesOriginal(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "a.flv")
	writeFile(t, input, fakeMedia("flv1", "mp3"))

	gate := New(fakeProber{}, &fakeEncoder{err: errors.New("exit status 1")}, Config{})

	if _, err := gate.Transcode(context.Background(), input); err == nil {
		t.Fatal("Expected error from failing encoder")
	}

	names := listDir(t, dir)
	if len(names) != 1 || names[0] != "a.flv" {
		t.Errorf("Expected only the untouched original, got %v", names)
	}
}

func TestTranscodeVerifyFailure(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "a.avi")
	writeFile(t, input, fakeMedia("mpeg4", "mp3"))

	gate := New(fakeProber{}, &fakeEncoder{output: fakeMedia("mpeg4", "mp3")}, Config{})

	_, err := gate.Transcode(context.Background(), input)
	if !errors.Is(err, ErrVerifyFailed) {
		t.Fatalf("Expected ErrVerifyFailed, got %v", err)
	}

	names := listDir(t, dir)
	if len(names) != 1 || names[0] != "a.avi" {
		t.Errorf("Expected only the untouched original, got %v", names)
	}
}

func TestTranscodeTimeout(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "a.mkv")
	writeFile(t, input, fakeMedia("hevc", "ac3"))

	gate := New(fakeProber{}, &fakeEncoder{delay: 5 * time.Second}, Config{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := gate.Transcode(context.Background(), input)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Error("Expected the timeout to stop the encoder")
	}
	if fileExists(filepath.Join(dir, "a.mp4")) || fileExists(partialPath(filepath.Join(dir, "a.mp4"))) {
		t.Error("Expected no output after timeout")
	}
	if !fileExists(input) {
		t.Error("Expected original to remain")
	}
}

func TestTranscodeOutputExists(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "a.mov")
	writeFile(t, input, fakeMedia("prores", ""))
	writeFile(t, filepath.Join(dir, "a.mp4"), fakeMedia("h264", ""))

	enc := &fakeEncoder{}
	gate := New(fakeProber{}, enc, Config{})

	_, err := gate.Transcode(context.Background(), input)
	if !errors.Is(err, ErrOutputExists) {
		t.Fatalf("Expected ErrOutputExists, got %v", err)
	}
	if enc.calls != 0 {
		t.Error("Expected encoder not to run")
	}
}

func TestRecover(t *testing.T) {
	t.Run("completed transcode", func(t *testing.T) {
		dir := t.TempDir()
		marker := filepath.Join(dir, "$_a.3gp")
		writeFile(t, marker, fakeMedia("h263", ""))
		writeFile(t, filepath.Join(dir, "a.mp4"), fakeMedia("h264", "aac"))

		gate := New(fakeProber{}, &fakeEncoder{}, Config{})
		path, action, err := gate.Recover(context.Background(), marker)
		if err != nil {
			t.Fatalf("Recover failed: %v", err)
		}
		if action != RecoverNone || path != filepath.Join(dir, "a.mp4") {
			t.Errorf("Expected none/a.mp4, got %s/%s", action, path)
		}
		if !fileExists(marker) {
			t.Error("Expected renamed original to stay")
		}
	})

	t.Run("crash before commit", func(t *testing.T) {
		dir := t.TempDir()
		marker := filepath.Join(dir, "$_a.3gp")
		canonical := filepath.Join(dir, "a.mp4")
		writeFile(t, marker, fakeMedia("h263", ""))
		writeFile(t, partialPath(canonical), fakeMedia("h264", "aac"))

		gate := New(fakeProber{}, &fakeEncoder{}, Config{})
		path, action, err := gate.Recover(context.Background(), marker)
		if err != nil {
			t.Fatalf("Recover failed: %v", err)
		}
		if action != RecoverCommitted || path != canonical {
			t.Errorf("Expected committed/%s, got %s/%s", canonical, action, path)
		}
		if !fileExists(canonical) {
			t.Error("Expected partial to be promoted")
		}
	})

	t.Run("no usable output", func(t *testing.T) {
		dir := t.TempDir()
		marker := filepath.Join(dir, "$_a.3gp")
		canonical := filepath.Join(dir, "a.mp4")
		writeFile(t, marker, fakeMedia("h263", ""))
		writeFile(t, partialPath(canonical), []byte("partial"))

		gate := New(fakeProber{}, &fakeEncoder{}, Config{})
		path, action, err := gate.Recover(context.Background(), marker)
		if err != nil {
			t.Fatalf("Recover failed: %v", err)
		}
		original := filepath.Join(dir, "a.3gp")
		if action != RecoverRestored || path != original {
			t.Errorf("Expected restored/%s, got %s/%s", original, action, path)
		}
		names := listDir(t, dir)
		if len(names) != 1 || names[0] != "a.3gp" {
			t.Errorf("Expected only the restored original, got %v", names)
		}
	})

	t.Run("not a marker", func(t *testing.T) {
		gate := New(fakeProber{}, &fakeEncoder{}, Config{})
		if _, _, err := gate.Recover(context.Background(), "/videos/a.3gp"); err == nil {
			t.Error("Expected error for a normal path")
		}
	})
}

func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/v/a.3gp", "/v/a.mp4"},
		{"/v/a.MP4", "/v/a.mp4"},
		{"/v/a.b.mkv", "/v/a.b.mp4"},
		{"/v/noext", "/v/noext.mp4"},
	}
	for _, tt := range tests {
		if got := CanonicalPath(tt.input); got != tt.expected {
			t.Errorf("CanonicalPath(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}
