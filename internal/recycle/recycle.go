package recycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"media-ingest/internal/database"
	"media-ingest/internal/filesystem"
	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"
	"media-ingest/internal/workers"
)

// Entity kinds stored in MissingItem.Type.
const (
	KindScene = "scene"
	KindImage = "image"
)

// maxCheckWorkers caps the stat pool of CheckMissing.
const maxCheckWorkers = 16

// IndexRemover drops documents from the search index.
type IndexRemover interface {
	Remove(ctx context.Context, ids ...string) error
}

// Tracker records catalog entities whose files have disappeared. Items are
// only ever added or removed, never updated.
type Tracker struct {
	catalog *database.Catalog
	index   IndexRemover
	retry   filesystem.RetryConfig
	workers int
	log     logging.Logger

	// checkMu keeps CheckMissing runs from overlapping.
	checkMu sync.Mutex
}

// New returns a tracker backed by catalog. index may be nil.
func New(catalog *database.Catalog, index IndexRemover) *Tracker {
	return &Tracker{
		catalog: catalog,
		index:   index,
		retry:   filesystem.DefaultRetryConfig(),
		workers: workers.ForIO(maxCheckWorkers),
		log:     logging.Component("recycle"),
	}
}

// MarkMissing starts tracking the entity id. Tracking an id twice keeps the
// first record.
func (t *Tracker) MarkMissing(ctx context.Context, kind, id, path string) error {
	if _, err := t.catalog.Missing.Get(ctx, id); err == nil {
		return nil
	} else if !errors.Is(err, database.ErrNotFound) {
		return err
	}

	item := &database.MissingItem{
		ID:         id,
		Type:       kind,
		Path:       path,
		DetectedAt: time.Now().UTC(),
	}
	if err := t.catalog.Missing.Upsert(ctx, item); err != nil {
		return err
	}
	t.log.Info("Tracking missing %s %s (%s)", kind, id, path)
	t.updateGauge(ctx)
	return nil
}

// Unmark stops tracking id.
func (t *Tracker) Unmark(ctx context.Context, id string) error {
	if err := t.catalog.Missing.Remove(ctx, id); err != nil {
		return err
	}
	t.updateGauge(ctx)
	return nil
}

// Items returns the tracked entities, oldest first.
func (t *Tracker) Items(ctx context.Context) ([]*database.MissingItem, error) {
	items, err := t.catalog.Missing.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].DetectedAt.Equal(items[j].DetectedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].DetectedAt.Before(items[j].DetectedAt)
	})
	return items, nil
}

// Head returns the oldest tracked entity, or nil when nothing is tracked.
func (t *Tracker) Head(ctx context.Context) (*database.MissingItem, error) {
	items, err := t.Items(ctx)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return items[0], nil
}

// Len returns the number of tracked entities.
func (t *Tracker) Len(ctx context.Context) (int, error) {
	return t.catalog.Missing.Count(ctx)
}

// Purge removes every tracked entity from the catalog and the search index,
// then clears its tracking record. An item whose removal fails stays
// tracked; the failures are joined into the returned error.
func (t *Tracker) Purge(ctx context.Context) (int, error) {
	items, err := t.Items(ctx)
	if err != nil {
		return 0, err
	}

	var errs []error
	purged := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := t.purgeItem(ctx, item); err != nil {
			t.log.Error("Failed to remove %s at path %s: %v", item.ID, item.Path, err)
			errs = append(errs, fmt.Errorf("%s: %w", item.ID, err))
			continue
		}
		purged++
	}

	metrics.MissingPurgedTotal.Add(float64(purged))
	t.updateGauge(ctx)
	if purged > 0 {
		t.log.Info("Purged %d missing items", purged)
	}
	return purged, errors.Join(errs...)
}

func (t *Tracker) purgeItem(ctx context.Context, item *database.MissingItem) error {
	ids := []string{item.ID}

	switch item.Type {
	case KindScene:
		// Preview images belong to the scene and go with it.
		previews, err := t.catalog.Images.Query(ctx, database.IndexScene, item.ID)
		if err != nil {
			return err
		}
		for _, image := range previews {
			if err := t.catalog.Images.Remove(ctx, image.ID); err != nil {
				return err
			}
			ids = append(ids, image.ID)
		}
		if err := t.catalog.Scenes.Remove(ctx, item.ID); err != nil {
			return err
		}
	case KindImage:
		if err := t.catalog.Images.Remove(ctx, item.ID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown missing item type %q", item.Type)
	}

	if t.index != nil {
		if err := t.index.Remove(ctx, ids...); err != nil {
			return err
		}
	}
	return t.catalog.Missing.Remove(ctx, item.ID)
}

// Reset clears tracking without touching the catalog. It is used when a
// volume was offline and its files are expected back.
func (t *Tracker) Reset(ctx context.Context) (int, error) {
	items, err := t.catalog.Missing.GetAll(ctx)
	if err != nil {
		return 0, err
	}

	var errs []error
	n := 0
	for _, item := range items {
		if err := t.catalog.Missing.Remove(ctx, item.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}

	t.updateGauge(ctx)
	t.log.Info("Reset %d missing items", n)
	return n, errors.Join(errs...)
}

// CheckResult summarizes a CheckMissing run.
type CheckResult struct {
	Checked  int
	Missing  int
	Restored int
	Errors   int
	Duration time.Duration
}

type entry struct {
	kind string
	id   string
	path string
}

// CheckMissing stats the file of every scene and image. Absent files are
// tracked; tracked entities whose file is back are untracked. A stat that
// fails for any other reason (an unreachable volume) changes nothing.
func (t *Tracker) CheckMissing(ctx context.Context) (CheckResult, error) {
	t.checkMu.Lock()
	defer t.checkMu.Unlock()

	start := time.Now()
	var result CheckResult

	entries, err := t.entries(ctx)
	if err != nil {
		metrics.MissingChecksTotal.WithLabelValues("error").Inc()
		return result, err
	}

	tracked := make(map[string]struct{})
	items, err := t.catalog.Missing.GetAll(ctx)
	if err != nil {
		metrics.MissingChecksTotal.WithLabelValues("error").Inc()
		return result, err
	}
	for _, item := range items {
		tracked[item.ID] = struct{}{}
	}

	var mu sync.Mutex
	err = workers.ForEach(ctx, t.workers, entries, func(ctx context.Context, e entry) {
		exists, err := filesystem.Exists(e.path, t.retry)

		mu.Lock()
		defer mu.Unlock()
		result.Checked++
		if err != nil {
			result.Errors++
			t.log.Warn("Could not check %s: %v", e.path, err)
			return
		}

		_, isTracked := tracked[e.id]
		switch {
		case !exists && !isTracked:
			if err := t.MarkMissing(ctx, e.kind, e.id, e.path); err != nil {
				result.Errors++
				t.log.Error("Failed to track %s: %v", e.id, err)
				return
			}
			result.Missing++
		case exists && isTracked:
			if err := t.Unmark(ctx, e.id); err != nil {
				result.Errors++
				return
			}
			result.Restored++
		}
	})

	result.Duration = time.Since(start)
	status := "success"
	if err != nil {
		status = "canceled"
	}
	metrics.MissingChecksTotal.WithLabelValues(status).Inc()
	t.updateGauge(context.WithoutCancel(ctx))

	t.log.Info("Checked %d files in %v: %d missing, %d back, %d errors",
		result.Checked, result.Duration.Round(time.Millisecond), result.Missing, result.Restored, result.Errors)
	return result, err
}

func (t *Tracker) entries(ctx context.Context) ([]entry, error) {
	scenes, err := t.catalog.Scenes.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	images, err := t.catalog.Images.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]entry, 0, len(scenes)+len(images))
	for _, s := range scenes {
		if s.Path != "" {
			entries = append(entries, entry{KindScene, s.ID, s.Path})
		}
	}
	for _, i := range images {
		if i.Path != "" {
			entries = append(entries, entry{KindImage, i.ID, i.Path})
		}
	}
	return entries, nil
}

func (t *Tracker) updateGauge(ctx context.Context) {
	if n, err := t.catalog.Missing.Count(ctx); err == nil {
		metrics.MissingItems.Set(float64(n))
	}
}
