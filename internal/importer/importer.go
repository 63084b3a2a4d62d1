package importer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"media-ingest/internal/database"
	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/memory"
	"media-ingest/internal/metrics"
	"media-ingest/internal/search"
	"media-ingest/internal/transcoder"
)

// Extractor associates a path with existing catalog entities.
type Extractor interface {
	ExtractScenes(ctx context.Context, path string) ([]string, error)
	ExtractActors(ctx context.Context, path string) ([]string, error)
	ExtractLabels(ctx context.Context, path string) ([]string, error)
}

// Indexer updates the search index.
type Indexer interface {
	Index(ctx context.Context, docs ...search.Document) error
}

// Transcoder runs a video through the transcode gate.
type Transcoder interface {
	Transcode(ctx context.Context, input string) (transcoder.Result, error)
}

// Previewer writes a preview image for a scene.
type Previewer interface {
	Generate(ctx context.Context, sceneID, scenePath string, duration float64) (string, error)
}

// errDuplicate ends an import whose path turned out to be catalogued
// already. It is not reported as a failure.
var errDuplicate = errors.New("already catalogued")

// base holds what both importers share.
type base struct {
	libType   mediatypes.LibraryType
	catalog   *database.Catalog
	extractor Extractor
	index     Indexer
	memory    *memory.Monitor
	log       logging.Logger
}

// stage runs fn and records its duration, and its failure under the stage
// name.
func (b *base) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.ImportStageDuration.WithLabelValues(b.libType.String(), name).Observe(time.Since(start).Seconds())
	if err != nil && !errors.Is(err, errDuplicate) {
		metrics.ImportErrorsTotal.WithLabelValues(b.libType.String(), name).Inc()
		return fmt.Errorf("%s: %w", name, err)
	}
	return err
}

// checkNew repeats the dedup check at dispatch time: the path may have
// been imported since it was queued.
func (b *base) checkNew(ctx context.Context, path string) error {
	return b.stage("dedup", func() error {
		exists, err := b.catalog.ExistsByPath(ctx, b.libType, path)
		if err != nil {
			return err
		}
		if exists {
			return errDuplicate
		}
		return nil
	})
}

// waitForMemory blocks while the memory monitor has paused work.
func (b *base) waitForMemory(ctx context.Context) error {
	return b.memory.WaitIfPaused(ctx)
}

// persistConflict maps a unique path violation to errDuplicate: another
// producer imported the same path first.
func persistConflict(err error) error {
	if errors.Is(err, database.ErrPathConflict) {
		return errDuplicate
	}
	return err
}

// finish turns errDuplicate into success.
func (b *base) finish(path string, err error) error {
	if errors.Is(err, errDuplicate) {
		b.log.Debug("Skipping %s: already catalogued", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// nameFromPath is the entity name derived from a file name.
func nameFromPath(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// nonNil keeps empty id lists encoded as [] rather than null.
func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
