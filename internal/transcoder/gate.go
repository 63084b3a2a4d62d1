package transcoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metrics"
)

var (
	// ErrOutputExists is returned when the canonical output path is
	// already taken by an unrelated file.
	ErrOutputExists = errors.New("transcode output already exists")
	// ErrVerifyFailed is returned when the transcoded output does not pass
	// the playback policy.
	ErrVerifyFailed = errors.New("transcoded output failed verification")
)

// OutputExtension is the extension of every transcoded file.
const OutputExtension = ".mp4"

const partialSuffix = ".partial"

// Prober reads container and codec information.
type Prober interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}

// Encoder produces a converted copy of input at output.
type Encoder interface {
	Encode(ctx context.Context, input, output string, args []string) error
}

// Config configures a Gate.
type Config struct {
	// Args is the encoder chain. Empty means DefaultArgs.
	Args []string
	// Timeout bounds a single encode. Zero means no limit.
	Timeout time.Duration
}

// Gate decides whether a video plays as is and converts it when it does
// not.
type Gate struct {
	prober  Prober
	encoder Encoder
	args    []string
	timeout time.Duration
	log     logging.Logger

	// commitMu makes the two commit renames atomic with respect to Recover.
	commitMu sync.Mutex
}

// Result describes what Transcode did.
type Result struct {
	Decision Decision
	// Path is the file to catalogue: the input on Pass, the canonical
	// output otherwise.
	Path string
	// OriginalPath is where the input was moved to, empty on Pass.
	OriginalPath string
	// Probe describes the file at Path.
	Probe *ProbeResult
}

// New returns a Gate using prober and encoder.
func New(prober Prober, encoder Encoder, cfg Config) *Gate {
	args := cfg.Args
	if len(args) == 0 {
		args = DefaultArgs
	}
	return &Gate{
		prober:  prober,
		encoder: encoder,
		args:    args,
		timeout: cfg.Timeout,
		log:     logging.Component("transcode"),
	}
}

// CanonicalPath is the output path for input: same directory and base
// name with the output extension.
func CanonicalPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + OutputExtension
}

// partialPath is the hidden temporary output for canonical. Hidden files
// are never classified as media, so watchers ignore it.
func partialPath(canonical string) string {
	return filepath.Join(filepath.Dir(canonical), "."+filepath.Base(canonical)+partialSuffix)
}

func exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Probe forwards to the configured prober.
func (g *Gate) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	return g.prober.Probe(ctx, path)
}

// Transcode runs input through the gate. On Pass nothing on disk changes.
// Otherwise the converted file is written to a hidden temporary path,
// verified, and then committed: the original is renamed to its "$_" marker
// name and the temporary file is renamed to the canonical path. On any
// failure the original stays where it was and no canonical output exists.
func (g *Gate) Transcode(ctx context.Context, input string) (Result, error) {
	probe, err := g.prober.Probe(ctx, input)
	if err != nil {
		return Result{}, fmt.Errorf("failed to probe %s: %w", input, err)
	}

	decision := Decide(input, probe)
	metrics.TranscodeDecisionsTotal.WithLabelValues(decision.String()).Inc()
	if decision == Pass {
		return Result{Decision: Pass, Path: input, Probe: probe}, nil
	}

	canonical := CanonicalPath(input)
	marker := mediatypes.RenamedOriginalPath(input)

	if canonical != input {
		taken, err := exists(canonical)
		if err != nil {
			return Result{}, err
		}
		if taken {
			metrics.TranscodeJobsTotal.WithLabelValues("error").Inc()
			return Result{}, fmt.Errorf("%w: %s", ErrOutputExists, canonical)
		}
	}
	if taken, err := exists(marker); err != nil {
		return Result{}, err
	} else if taken {
		metrics.TranscodeJobsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("%w: renamed original %s", ErrOutputExists, marker)
	}

	partial := partialPath(canonical)
	// Leftover from an earlier crash.
	_ = os.Remove(partial)

	g.log.Info("Transcoding %s", input)
	start := time.Now()

	encodeCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		encodeCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if err := g.encoder.Encode(encodeCtx, input, partial, g.args); err != nil {
		g.removePartial(partial)
		status := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(encodeCtx.Err(), context.DeadlineExceeded) {
			status = "timeout"
		}
		metrics.TranscodeJobsTotal.WithLabelValues(status).Inc()
		return Result{}, fmt.Errorf("failed to transcode %s: %w", input, err)
	}

	verified, err := g.verify(ctx, partial, canonical)
	if err != nil {
		g.removePartial(partial)
		metrics.TranscodeJobsTotal.WithLabelValues("verify_failed").Inc()
		return Result{}, err
	}

	g.commitMu.Lock()
	defer g.commitMu.Unlock()

	if err := os.Rename(input, marker); err != nil {
		g.removePartial(partial)
		metrics.TranscodeJobsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("failed to rename original %s: %w", input, err)
	}
	if err := os.Rename(partial, canonical); err != nil {
		if rerr := os.Rename(marker, input); rerr != nil {
			g.log.Error("Failed to restore original %s: %v", input, rerr)
		}
		g.removePartial(partial)
		metrics.TranscodeJobsTotal.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("failed to commit %s: %w", canonical, err)
	}

	metrics.TranscodeJobsTotal.WithLabelValues("success").Inc()
	metrics.TranscodeDuration.Observe(time.Since(start).Seconds())
	g.log.Info("Transcoded %s -> %s in %v", input, canonical, time.Since(start).Round(time.Millisecond))

	return Result{
		Decision:     TranscodeRequired,
		Path:         canonical,
		OriginalPath: marker,
		Probe:        verified,
	}, nil
}

// verify probes path and checks it against the policy as if it were
// already at canonical.
func (g *Gate) verify(ctx context.Context, path, canonical string) (*ProbeResult, error) {
	probe, err := g.prober.Probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrVerifyFailed, canonical, err)
	}
	if Decide(canonical, probe) != Pass {
		return nil, fmt.Errorf("%w: %s", ErrVerifyFailed, canonical)
	}
	return probe, nil
}

func (g *Gate) removePartial(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		g.log.Warn("Failed to remove partial output %s: %v", path, err)
	}
}

// RecoverAction reports what Recover did with a renamed original.
type RecoverAction string

const (
	// RecoverNone means the transcode had completed; nothing changed.
	RecoverNone RecoverAction = "none"
	// RecoverCommitted means a verified partial output was promoted.
	RecoverCommitted RecoverAction = "committed"
	// RecoverRestored means the original was moved back to its name.
	RecoverRestored RecoverAction = "restored"
)

// Recover reconciles a "$_" renamed original left by an interrupted
// transcode. When the canonical output exists the transcode completed and
// nothing changes. Otherwise a partial output that passes verification is
// promoted to the canonical path, and failing that the original is renamed
// back. The returned path is the file that should be catalogued.
func (g *Gate) Recover(ctx context.Context, marker string) (string, RecoverAction, error) {
	if !mediatypes.IsRenamedOriginal(marker) {
		return "", RecoverNone, fmt.Errorf("not a renamed original: %s", marker)
	}

	g.commitMu.Lock()
	defer g.commitMu.Unlock()

	original := mediatypes.OriginalFromRenamed(marker)
	canonical := CanonicalPath(original)
	partial := partialPath(canonical)

	done, err := exists(canonical)
	if err != nil {
		return "", RecoverNone, err
	}
	if done {
		g.removePartial(partial)
		return canonical, RecoverNone, nil
	}

	if ok, _ := exists(partial); ok {
		if _, err := g.verify(ctx, partial, canonical); err == nil {
			if err := os.Rename(partial, canonical); err != nil {
				return "", RecoverNone, fmt.Errorf("failed to promote %s: %w", partial, err)
			}
			g.log.Info("Recovered interrupted transcode of %s", original)
			metrics.TranscodeRecoveriesTotal.WithLabelValues(string(RecoverCommitted)).Inc()
			return canonical, RecoverCommitted, nil
		}
		g.removePartial(partial)
	}

	if taken, err := exists(original); err != nil {
		return "", RecoverNone, err
	} else if taken {
		return "", RecoverNone, fmt.Errorf("%w: cannot restore %s", ErrOutputExists, original)
	}

	if err := os.Rename(marker, original); err != nil {
		return "", RecoverNone, fmt.Errorf("failed to restore %s: %w", original, err)
	}
	g.log.Warn("Restored original %s after an interrupted transcode", original)
	metrics.TranscodeRecoveriesTotal.WithLabelValues(string(RecoverRestored)).Inc()
	return original, RecoverRestored, nil
}
