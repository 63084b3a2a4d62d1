package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"media-ingest/internal/database"
)

// Extractor associates file paths with catalogued scenes, actors and
// labels. It never writes to the catalog.
type Extractor struct {
	catalog *database.Catalog
}

// New returns an Extractor backed by catalog.
func New(catalog *database.Catalog) *Extractor {
	return &Extractor{catalog: catalog}
}

type candidate struct {
	id    string
	names []string
}

// match returns the ids of every candidate with a name occurring in path
// as whole words, deduplicated and sorted.
func match(path string, candidates []candidate) []string {
	target := normalizePath(path)
	seen := make(map[string]struct{})
	ids := []string{}

	for _, c := range candidates {
		if _, ok := seen[c.id]; ok {
			continue
		}
		for _, name := range c.names {
			if containsWords(target, Normalize(name)) {
				seen[c.id] = struct{}{}
				ids = append(ids, c.id)
				break
			}
		}
	}

	sort.Strings(ids)
	return ids
}

// ExtractActors returns the ids of actors whose name or alias appears in
// path.
func (e *Extractor) ExtractActors(ctx context.Context, path string) ([]string, error) {
	actors, err := e.catalog.Actors.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load actors: %w", err)
	}

	candidates := make([]candidate, 0, len(actors))
	for _, a := range actors {
		candidates = append(candidates, candidate{id: a.ID, names: append([]string{a.Name}, a.Aliases...)})
	}
	return match(path, candidates), nil
}

// ExtractLabels returns the ids of labels whose name or alias appears in
// path.
func (e *Extractor) ExtractLabels(ctx context.Context, path string) ([]string, error) {
	labels, err := e.catalog.Labels.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load labels: %w", err)
	}

	candidates := make([]candidate, 0, len(labels))
	for _, l := range labels {
		candidates = append(candidates, candidate{id: l.ID, names: append([]string{l.Name}, l.Aliases...)})
	}
	return match(path, candidates), nil
}

// ExtractScenes returns the ids of scenes related to path. A scene matches
// when its name appears in path, or when its file shares path's directory
// and base name (a sidecar image such as clip.jpg next to clip.mp4).
func (e *Extractor) ExtractScenes(ctx context.Context, path string) ([]string, error) {
	scenes, err := e.catalog.Scenes.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenes: %w", err)
	}

	stem := trimExt(path)
	candidates := make([]candidate, 0, len(scenes))
	sidecars := []string{}
	for _, s := range scenes {
		if s.Path == path {
			continue
		}
		if trimExt(s.Path) == stem {
			sidecars = append(sidecars, s.ID)
			continue
		}
		candidates = append(candidates, candidate{id: s.ID, names: []string{s.Name}})
	}

	ids := match(path, candidates)
	if len(sidecars) == 0 {
		return ids, nil
	}

	ids = append(ids, sidecars...)
	sort.Strings(ids)
	return ids, nil
}

func trimExt(path string) string {
	return path[:len(path)-len(filepath.Ext(path))]
}
