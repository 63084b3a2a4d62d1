package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"media-ingest/internal/database"
	"media-ingest/internal/extractor"
	"media-ingest/internal/filesystem"
	"media-ingest/internal/importer"
	"media-ingest/internal/media"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/memory"
	"media-ingest/internal/metrics"
	"media-ingest/internal/pipeline"
	"media-ingest/internal/search"
	"media-ingest/internal/startup"
	"media-ingest/internal/transcoder"
)

// services are the long-lived collaborators shared by every command that
// touches the catalog.
type services struct {
	cfg         *startup.Config
	catalog     *database.Catalog
	index       *search.Index
	ffmpeg      *transcoder.FFmpeg
	gate        *transcoder.Gate
	memory      *memory.Monitor
	coordinator *pipeline.Coordinator
}

// volumeResolver labels filesystem metrics by library type.
func volumeResolver(cfg *startup.Config) *filesystem.VolumeResolver {
	return filesystem.NewVolumeResolver(map[string][]string{
		"video": cfg.VideoPaths,
		"image": cfg.ImagePaths,
		"data":  {cfg.DataDir},
	})
}

func openServices(ctx context.Context, cfg *startup.Config) (*services, error) {
	dbStart := time.Now()
	catalog, err := database.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	startup.LogDatabaseInit(time.Since(dbStart), cfg.DatabasePath)

	indexStart := time.Now()
	index, err := search.Open(cfg.IndexPath)
	if err != nil {
		_ = catalog.Close()
		return nil, fmt.Errorf("open search index: %w", err)
	}
	docs, countErr := index.Count()
	startup.LogSearchInit(time.Since(indexStart), docs, countErr)

	memCfg := memory.DefaultConfig()
	memCfg.MemoryLimitBytes = cfg.MemoryLimitBytes
	monitor := memory.NewMonitor(memCfg)
	monitor.Start()

	ffmpeg := transcoder.NewFFmpeg()
	gate := transcoder.New(ffmpeg, ffmpeg, transcoder.Config{
		Args:    cfg.TranscodeArgs,
		Timeout: cfg.TranscodeTimeout,
	})

	var previewer importer.Previewer
	if cfg.GeneratePreviews {
		previewer = media.NewPreviewGenerator(cfg.PreviewDir, ffmpeg)
	}

	coordinator := pipeline.New(pipeline.Config{
		VideoPaths:                      cfg.VideoPaths,
		ImagePaths:                      cfg.ImagePaths,
		Excluder:                        mediatypes.NewExcluder(cfg.ExcludeFiles),
		UsePolling:                      cfg.UsePolling,
		PollInterval:                    cfg.PollInterval,
		SettleDelay:                     cfg.SettleDelay,
		ScanInterval:                    cfg.ScanInterval,
		ReadImagesOnImport:              cfg.ReadImagesOnImport,
		ReadDimensionsBeforeInitialScan: cfg.ReadDimensionsBeforeInitialScan,
		CheckMissing:                    cfg.CheckMissing,
	}, pipeline.Deps{
		Catalog:    catalog,
		Index:      index,
		Extractor:  extractor.New(catalog),
		Transcoder: gate,
		Previewer:  previewer,
		Memory:     monitor,
	})

	return &services{
		cfg:         cfg,
		catalog:     catalog,
		index:       index,
		ffmpeg:      ffmpeg,
		gate:        gate,
		memory:      monitor,
		coordinator: coordinator,
	}, nil
}

// Close stops the pipeline, then releases storage. ctx bounds the wait for
// in-flight imports.
func (s *services) Close(ctx context.Context) error {
	var errs []error
	if err := s.coordinator.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop pipeline: %w", err))
	}
	s.ffmpeg.Cleanup()
	s.memory.Stop()
	if err := s.index.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close search index: %w", err))
	}
	if err := s.catalog.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close catalog: %w", err))
	}
	return errors.Join(errs...)
}

// CollectStats implements metrics.StatsProvider.
func (s *services) CollectStats(ctx context.Context) (metrics.Stats, error) {
	s.catalog.UpdateDBMetrics()

	counts, err := s.catalog.Counts(ctx)
	if err != nil {
		return metrics.Stats{}, err
	}
	docs, err := s.index.Count()
	if err != nil {
		return metrics.Stats{}, err
	}
	return metrics.Stats{
		Scenes:          counts.Scenes,
		Images:          counts.Images,
		Actors:          counts.Actors,
		Labels:          counts.Labels,
		Missing:         counts.Missing,
		SearchDocuments: docs,
	}, nil
}
