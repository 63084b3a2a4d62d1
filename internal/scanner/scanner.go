package scanner

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"media-ingest/internal/filesystem"
	"media-ingest/internal/ingest"
	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metrics"
	"media-ingest/internal/transcoder"
)

// Admitter offers discovered paths to the import queues.
type Admitter interface {
	Admit(ctx context.Context, t mediatypes.LibraryType, path string, source ingest.Source) (ingest.Outcome, error)
	Counts() *ingest.FoundCounts
}

// Recoverer reconciles renamed originals left by interrupted transcodes.
type Recoverer interface {
	Recover(ctx context.Context, marker string) (string, transcoder.RecoverAction, error)
}

// Config configures a Scanner.
type Config struct {
	VideoPaths []string
	ImagePaths []string
	Excluder   *mediatypes.Excluder
}

// Scanner walks the library roots and admits every file it finds.
type Scanner struct {
	cfg       Config
	admitter  Admitter
	recoverer Recoverer
	retry     filesystem.RetryConfig
	log       logging.Logger
}

// Result summarises one scan of one library type.
type Result struct {
	Type       mediatypes.LibraryType `json:"type"`
	Folders    int                    `json:"folders"`
	Files      int                    `json:"files"`
	Admitted   int                    `json:"admitted"`
	Duplicates int                    `json:"duplicates"`
	Queued     int                    `json:"queued"`
	Errors     int                    `json:"errors"`
	Recovered  int                    `json:"recovered"`
	RootErrors int                    `json:"rootErrors"`
	Duration   time.Duration          `json:"duration"`
}

// New returns a Scanner. recoverer may be nil, in which case renamed
// originals are ignored.
func New(cfg Config, admitter Admitter, recoverer Recoverer) *Scanner {
	return &Scanner{
		cfg:       cfg,
		admitter:  admitter,
		recoverer: recoverer,
		retry:     filesystem.DefaultRetryConfig(),
		log:       logging.Component("scanner"),
	}
}

// Roots returns the configured roots of t.
func (s *Scanner) Roots(t mediatypes.LibraryType) []string {
	switch t {
	case mediatypes.Video:
		return s.cfg.VideoPaths
	case mediatypes.Image:
		return s.cfg.ImagePaths
	case mediatypes.None:
		return nil
	}
	return nil
}

// Scan rotates the found count of t and walks every root of t depth first,
// admitting files as they are found. An unreadable root is logged and
// skipped. Only cancellation of ctx ends the scan early.
func (s *Scanner) Scan(ctx context.Context, t mediatypes.LibraryType) (Result, error) {
	start := time.Now()
	res := Result{Type: t}
	label := t.String()
	counts := s.admitter.Counts()

	counts.Rotate(t)
	previous := counts.Get(t).Previous

	if s.cfg.Excluder.Len() > 0 {
		s.log.Debug("Ignoring files matching %d exclusion patterns", s.cfg.Excluder.Len())
	}

	for _, root := range s.Roots(t) {
		s.log.Info("Scanning folder %q for %ss...", root, label)
		before := res.Files

		err := filesystem.WalkDir(root, s.retry, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err != nil {
				if path == root {
					return err
				}
				s.log.Warn("Skipping %s: %v", path, err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}

			if d.IsDir() {
				if path != root && (mediatypes.IsHidden(path) || s.cfg.Excluder.Match(path)) {
					return fs.SkipDir
				}
				res.Folders++
				metrics.ScanFoldersSeen.WithLabelValues(label).Inc()
				s.log.Debug("Scanned %d %ss, total: %d/%d", res.Files, label, counts.Get(t).Current, previous)
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}

			s.visit(ctx, t, path, &res)
			return nil
		})

		switch {
		case err == nil:
			s.log.Info("Folder %q done (%d %ss), total: %d/%d", root, res.Files-before, label, counts.Get(t).Current, previous)
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			res.Duration = time.Since(start)
			metrics.ScanRunsTotal.WithLabelValues(label, "error").Inc()
			return res, err
		default:
			res.RootErrors++
			metrics.ScanRootErrors.WithLabelValues(label).Inc()
			s.log.Error("Cannot scan folder %q: %v", root, err)
		}
	}

	res.Duration = time.Since(start)
	metrics.ScanRunsTotal.WithLabelValues(label, "success").Inc()
	metrics.ScanDuration.WithLabelValues(label).Observe(res.Duration.Seconds())
	s.log.Info("Added %d new %ss in %v, total: %d/%d",
		res.Admitted, label, res.Duration.Round(time.Millisecond), counts.Get(t).Current, previous)
	return res, nil
}

func (s *Scanner) visit(ctx context.Context, t mediatypes.LibraryType, path string, res *Result) {
	if t == mediatypes.Video && mediatypes.IsRenamedOriginal(path) {
		recovered, ok := s.recover(ctx, path)
		if !ok {
			return
		}
		res.Recovered++
		path = recovered
	}

	outcome, err := s.admitter.Admit(ctx, t, path, ingest.SourceScanner)
	if outcome != ingest.Rejected || err != nil {
		res.Files++
		metrics.ScanFilesSeen.WithLabelValues(t.String()).Inc()
	}
	if err != nil {
		res.Errors++
		return
	}

	switch outcome {
	case ingest.Admitted:
		res.Admitted++
	case ingest.Duplicate:
		res.Duplicates++
	case ingest.AlreadyQueued:
		res.Queued++
	case ingest.Rejected:
	}
}

// recover reconciles a renamed original. It returns the path to admit and
// whether anything changed on disk.
func (s *Scanner) recover(ctx context.Context, marker string) (string, bool) {
	if s.recoverer == nil {
		return "", false
	}

	path, action, err := s.recoverer.Recover(ctx, marker)
	if err != nil {
		s.log.Warn("Cannot reconcile %s: %v", marker, err)
		return "", false
	}
	if action == transcoder.RecoverNone {
		return "", false
	}
	s.log.Info("Reconciled %s (%s): importing %s", marker, action, path)
	return path, true
}
