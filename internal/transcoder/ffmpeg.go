package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"
)

// DefaultArgs is the encoder chain used when none is configured: H.264 and
// AAC in an MP4 with the index at the front.
var DefaultArgs = []string{
	"-c:v", "libx264",
	"-preset", "fast",
	"-crf", "23",
	"-pix_fmt", "yuv420p",
	"-vf", "scale=trunc(iw/2)*2:trunc(ih/2)*2",
	"-c:a", "aac",
	"-b:a", "128k",
	"-movflags", "+faststart",
}

// FFmpeg runs ffprobe and ffmpeg subprocesses and tracks the running ones
// so they can be killed on shutdown.
type FFmpeg struct {
	ffprobePath string
	ffmpegPath  string

	processes map[string]*exec.Cmd
	processMu sync.Mutex
}

// NewFFmpeg returns a runner using the binaries found on PATH.
func NewFFmpeg() *FFmpeg {
	return &FFmpeg{
		ffprobePath: "ffprobe",
		ffmpegPath:  "ffmpeg",
		processes:   make(map[string]*exec.Cmd),
	}
}

// Available reports whether both binaries can be found.
func (f *FFmpeg) Available() bool {
	if _, err := exec.LookPath(f.ffprobePath); err != nil {
		return false
	}
	_, err := exec.LookPath(f.ffmpegPath)
	return err == nil
}

// Probe reads container and stream information from path.
func (f *FFmpeg) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseProbeOutput(stdout.Bytes())
}

// Encode converts input into an MP4 at output using args as the codec
// chain. output is overwritten.
func (f *FFmpeg) Encode(ctx context.Context, input, output string, args []string) error {
	full := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", input}
	full = append(full, args...)
	full = append(full, "-f", "mp4", output)

	return f.run(ctx, output, full)
}

// Frame writes a single video frame taken at offset seconds to output.
func (f *FFmpeg) Frame(ctx context.Context, input, output string, offset float64) error {
	return f.run(ctx, output, []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", fmt.Sprintf("%.3f", offset),
		"-i", input,
		"-frames:v", "1",
		output,
	})
}

func (f *FFmpeg) run(ctx context.Context, key string, args []string) error {
	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	f.processMu.Lock()
	f.processes[key] = cmd
	f.processMu.Unlock()
	metrics.TranscodeInProgress.Inc()

	defer func() {
		f.processMu.Lock()
		delete(f.processes, key)
		f.processMu.Unlock()
		metrics.TranscodeInProgress.Dec()
	}()

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Debug("FFmpeg stderr for %s: %s", key, stderr.String())
		return fmt.Errorf("ffmpeg error: %w - %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Cleanup kills every running subprocess.
func (f *FFmpeg) Cleanup() {
	f.processMu.Lock()
	defer f.processMu.Unlock()

	for path, cmd := range f.processes {
		if cmd.Process != nil {
			logging.Info("Killing ffmpeg process for: %s", path)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill ffmpeg process for %s: %v", path, err)
			}
		}
	}
}
