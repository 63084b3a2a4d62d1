package ingest

import (
	"context"
	"fmt"

	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metrics"
)

// Source names the producer of a path in logs and metrics.
type Source string

const (
	SourceWatcher Source = "watcher"
	SourceScanner Source = "scanner"
)

// Outcome is the result of an admission attempt.
type Outcome int

const (
	// Rejected means the path is not an importable file of the requested
	// type.
	Rejected Outcome = iota
	// Duplicate means the path is already catalogued.
	Duplicate
	// AlreadyQueued means the path is pending or in flight.
	AlreadyQueued
	// Admitted means the path was pushed to its queue.
	Admitted
)

func (o Outcome) String() string {
	switch o {
	case Rejected:
		return "rejected"
	case Duplicate:
		return "duplicate"
	case AlreadyQueued:
		return "queued"
	case Admitted:
		return "admitted"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Queue accepts paths for import.
type Queue interface {
	Push(path string) bool
}

// Admitter runs a path through classification, the dedup gate and the
// queue of its type. The watcher and the scanner share one Admitter.
type Admitter struct {
	excluder *mediatypes.Excluder
	gate     *DedupGate
	counts   *FoundCounts
	video    Queue
	image    Queue
	log      logging.Logger
}

// NewAdmitter wires the admission path.
func NewAdmitter(excluder *mediatypes.Excluder, gate *DedupGate, counts *FoundCounts, video, image Queue) *Admitter {
	return &Admitter{
		excluder: excluder,
		gate:     gate,
		counts:   counts,
		video:    video,
		image:    image,
		log:      logging.Component("admit"),
	}
}

// Counts returns the found counts updated by admissions.
func (a *Admitter) Counts() *FoundCounts {
	return a.counts
}

func (a *Admitter) queueFor(t mediatypes.LibraryType) Queue {
	switch t {
	case mediatypes.Video:
		return a.video
	case mediatypes.Image:
		return a.image
	case mediatypes.None:
		return nil
	}
	return nil
}

// Admit offers path as a file of type t. Dedup failures are logged and
// returned wrapping ErrDedupCheck; the path is not queued.
func (a *Admitter) Admit(ctx context.Context, t mediatypes.LibraryType, path string, source Source) (Outcome, error) {
	if mediatypes.Classify(path, a.excluder) != t {
		return Rejected, nil
	}
	q := a.queueFor(t)
	if q == nil {
		return Rejected, nil
	}

	label := t.String()
	ok, err := a.gate.ShouldEnqueue(ctx, path, t)
	if err != nil {
		metrics.AdmissionsTotal.WithLabelValues(label, string(source), "error").Inc()
		a.log.Error("Dropping %s from %s: %v", path, source, err)
		return Rejected, err
	}
	if !ok {
		metrics.AdmissionsTotal.WithLabelValues(label, string(source), "duplicate").Inc()
		return Duplicate, nil
	}

	if !q.Push(path) {
		metrics.AdmissionsTotal.WithLabelValues(label, string(source), "queued").Inc()
		return AlreadyQueued, nil
	}

	a.counts.Increment(t)
	metrics.AdmissionsTotal.WithLabelValues(label, string(source), "admitted").Inc()
	a.log.Debug("Queued %s %s from %s", label, path, source)
	return Admitted, nil
}
