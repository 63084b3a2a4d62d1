package importer

import (
	"context"
	"os"
	"time"

	"media-ingest/internal/database"
	"media-ingest/internal/logging"
	"media-ingest/internal/media"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/memory"
	"media-ingest/internal/search"
)

// ImageConfig configures an ImageImporter.
type ImageConfig struct {
	Catalog   *database.Catalog
	Extractor Extractor
	Index     Indexer
	Memory    *memory.Monitor

	// ReadImages enables reading dimensions and hash on import.
	ReadImages bool
	// ReadBeforeInitialScan also reads them while the initial scan is
	// still running.
	ReadBeforeInitialScan bool
	// InitialScanDone reports whether the image watcher has finished its
	// initial scan. Nil means it has.
	InitialScanDone func() bool

	// ReadInfo defaults to media.ReadImageInfo.
	ReadInfo func(path string) (media.ImageInfo, error)
}

// ImageImporter turns image files into images.
type ImageImporter struct {
	base
	cfg ImageConfig
}

// NewImageImporter returns an importer for the image queue.
func NewImageImporter(cfg ImageConfig) *ImageImporter {
	if cfg.ReadInfo == nil {
		cfg.ReadInfo = media.ReadImageInfo
	}
	return &ImageImporter{
		base: base{
			libType:   mediatypes.Image,
			catalog:   cfg.Catalog,
			extractor: cfg.Extractor,
			index:     cfg.Index,
			memory:    cfg.Memory,
			log:       logging.Component("imageImport"),
		},
		cfg: cfg,
	}
}

// Import catalogues the image at path. It is the image queue's handler.
func (m *ImageImporter) Import(ctx context.Context, path string) error {
	return m.finish(path, m.importImage(ctx, path))
}

func (m *ImageImporter) shouldRead() bool {
	if !m.cfg.ReadImages {
		return false
	}
	if m.cfg.ReadBeforeInitialScan || m.cfg.InitialScanDone == nil {
		return true
	}
	return m.cfg.InitialScanDone()
}

func (m *ImageImporter) importImage(ctx context.Context, path string) error {
	if err := m.checkNew(ctx, path); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return m.stage("read", func() error { return err })
	}

	image := &database.Image{
		ID:      database.NewImageID(),
		Name:    nameFromPath(path),
		Path:    path,
		AddedOn: time.Now().UTC(),
		Size:    info.Size(),
		Actors:  []string{},
		Labels:  []string{},
	}

	if m.shouldRead() {
		if err := m.waitForMemory(ctx); err != nil {
			return err
		}
		if err := m.stage("read", func() error {
			meta, err := m.cfg.ReadInfo(path)
			if err != nil {
				return err
			}
			image.Width, image.Height, image.Hash = meta.Width, meta.Height, meta.Hash
			return nil
		}); err != nil {
			return err
		}
	}

	if err := m.stage("extract", func() error {
		scenes, err := m.extractor.ExtractScenes(ctx, path)
		if err != nil {
			return err
		}
		if len(scenes) > 0 {
			image.Scene = scenes[0]
		}
		actors, err := m.extractor.ExtractActors(ctx, path)
		if err != nil {
			return err
		}
		labels, err := m.extractor.ExtractLabels(ctx, path)
		if err != nil {
			return err
		}
		image.Actors, image.Labels = nonNil(actors), nonNil(labels)
		return nil
	}); err != nil {
		return err
	}

	if err := m.stage("persist", func() error {
		return persistConflict(m.catalog.Images.Upsert(ctx, image))
	}); err != nil {
		return err
	}
	if err := m.stage("index", func() error {
		return m.index.Index(ctx, search.FromImage(image))
	}); err != nil {
		return err
	}

	m.log.Debug("Imported image %s (%s)", image.Name, image.ID)
	return nil
}
