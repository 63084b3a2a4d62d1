package importer

import (
	"context"
	"os"
	"sync"
	"time"

	"media-ingest/internal/database"
	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/memory"
	"media-ingest/internal/search"
	"media-ingest/internal/transcoder"
)

// VideoConfig configures a VideoImporter.
type VideoConfig struct {
	Catalog    *database.Catalog
	Extractor  Extractor
	Index      Indexer
	Transcoder Transcoder
	// Previewer is optional; nil disables previews on import.
	Previewer Previewer
	Memory    *memory.Monitor
	// Reserve keeps a path out of the video queue until release is called.
	// Optional.
	Reserve func(path string) (release func())
}

// VideoImporter turns video files into scenes.
type VideoImporter struct {
	base
	transcoder Transcoder
	previewer  Previewer
	reserve    func(path string) (release func())
}

// NewVideoImporter returns an importer for the video queue.
func NewVideoImporter(cfg VideoConfig) *VideoImporter {
	return &VideoImporter{
		base: base{
			libType:   mediatypes.Video,
			catalog:   cfg.Catalog,
			extractor: cfg.Extractor,
			index:     cfg.Index,
			memory:    cfg.Memory,
			log:       logging.Component("videoImport"),
		},
		transcoder: cfg.Transcoder,
		previewer:  cfg.Previewer,
		reserve:    cfg.Reserve,
	}
}

// Import catalogues the video at path. It is the video queue's handler.
func (v *VideoImporter) Import(ctx context.Context, path string) error {
	return v.finish(path, v.importVideo(ctx, path))
}

func (v *VideoImporter) importVideo(ctx context.Context, path string) error {
	if err := v.checkNew(ctx, path); err != nil {
		return err
	}
	if err := v.waitForMemory(ctx); err != nil {
		return err
	}

	scene := &database.Scene{
		ID:      database.NewSceneID(),
		Name:    nameFromPath(path),
		Path:    path,
		AddedOn: time.Now().UTC(),
		Actors:  []string{},
		Labels:  []string{},
	}
	v.log.Info("Importing %s as %s", path, scene.ID)

	// Committing a transcode creates the canonical file, which the watcher
	// reports before the scene is persisted.
	release := v.reserveOutput(path)
	defer release()

	var result transcoder.Result
	if err := v.stage("transcode", func() error {
		var err error
		result, err = v.transcoder.Transcode(ctx, path)
		return err
	}); err != nil {
		return err
	}

	if result.Decision == transcoder.TranscodeRequired {
		scene.Path = result.Path
		scene.OriginalPath = result.OriginalPath
	} else {
		release()
	}
	if err := v.stage("probe", func() error {
		return applyProbe(scene, result.Probe)
	}); err != nil {
		return err
	}

	if err := v.stage("extract", func() error {
		actors, err := v.extractor.ExtractActors(ctx, path)
		if err != nil {
			return err
		}
		labels, err := v.extractor.ExtractLabels(ctx, path)
		if err != nil {
			return err
		}
		scene.Actors, scene.Labels = nonNil(actors), nonNil(labels)
		return nil
	}); err != nil {
		return err
	}

	if err := v.stage("persist", func() error {
		return persistConflict(v.catalog.Scenes.Upsert(ctx, scene))
	}); err != nil {
		return err
	}
	if err := v.stage("index", func() error {
		return v.index.Index(ctx, search.FromScene(scene))
	}); err != nil {
		return err
	}

	if v.previewer != nil {
		if err := v.AttachPreview(ctx, scene); err != nil {
			v.log.Warn("Preview for %s failed: %v", scene.Path, err)
		}
	}

	v.log.Info("Imported scene %s (%s)", scene.Name, scene.ID)
	return nil
}

// reserveOutput reserves the transcode output path of input. The returned
// release is safe to call more than once.
func (v *VideoImporter) reserveOutput(input string) func() {
	canonical := transcoder.CanonicalPath(input)
	if v.reserve == nil || canonical == input {
		return func() {}
	}
	var once sync.Once
	release := v.reserve(canonical)
	return func() { once.Do(release) }
}

// applyProbe copies stream metadata and the file size onto scene.
func applyProbe(scene *database.Scene, probe *transcoder.ProbeResult) error {
	info, err := os.Stat(scene.Path)
	if err != nil {
		return err
	}
	scene.Size = info.Size()

	if probe == nil {
		return nil
	}
	scene.Duration = probe.Duration
	scene.FPS = probe.FPS()
	if vs := probe.VideoStream(); vs != nil {
		scene.Width = vs.Width
		scene.Height = vs.Height
		scene.Codec = vs.CodecName
	}
	return nil
}

// AttachPreview generates a preview for scene, stores it as an image
// linked to the scene and sets it as the scene thumbnail.
func (v *VideoImporter) AttachPreview(ctx context.Context, scene *database.Scene) error {
	if v.previewer == nil {
		return nil
	}

	return v.stage("preview", func() error {
		path, err := v.previewer.Generate(ctx, scene.ID, scene.Path, scene.Duration)
		if err != nil {
			return err
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}

		image := &database.Image{
			ID:      database.NewImageID(),
			Name:    scene.Name + " (preview)",
			Path:    path,
			AddedOn: time.Now().UTC(),
			Size:    info.Size(),
			Scene:   scene.ID,
			Actors:  scene.Actors,
			Labels:  scene.Labels,
		}
		// A regenerated preview reuses its image entry.
		if existing, err := v.catalog.Images.GetByPath(ctx, path); err == nil {
			image.ID = existing.ID
			image.AddedOn = existing.AddedOn
		}
		if err := v.catalog.Images.Upsert(ctx, image); err != nil {
			return err
		}
		if err := v.index.Index(ctx, search.FromImage(image)); err != nil {
			return err
		}

		scene.Thumbnail = image.ID
		return v.catalog.Scenes.Upsert(ctx, scene)
	})
}

// PreviewMissing generates previews for every scene without a thumbnail.
// Failures are logged per scene.
func (v *VideoImporter) PreviewMissing(ctx context.Context) (generated int, err error) {
	if v.previewer == nil {
		v.log.Warn("Not generating previews because GENERATE_PREVIEWS is disabled")
		return 0, nil
	}

	scenes, err := v.catalog.Scenes.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	for _, scene := range scenes {
		if scene.Thumbnail != "" || scene.Path == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return generated, err
		}
		if err := v.waitForMemory(ctx); err != nil {
			return generated, err
		}
		if err := v.AttachPreview(ctx, scene); err != nil {
			v.log.Error("Error generating preview for %s: %v", scene.ID, err)
			continue
		}
		generated++
	}

	if generated > 0 {
		v.log.Info("Generated %d previews", generated)
	}
	return generated, nil
}
