package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"media-ingest/internal/database"
	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metrics"
)

// Document is the searchable projection of a catalog entity.
type Document struct {
	ID     string   `json:"id"`
	Type   string   `json:"type"`
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Actors []string `json:"actors,omitempty"`
	Labels []string `json:"labels,omitempty"`
	Scene  string   `json:"scene,omitempty"`
}

// FromScene projects a scene for indexing.
func FromScene(s *database.Scene) Document {
	return Document{
		ID:     s.ID,
		Type:   mediatypes.Video.String(),
		Name:   s.Name,
		Path:   s.Path,
		Actors: s.Actors,
		Labels: s.Labels,
	}
}

// FromImage projects an image for indexing.
func FromImage(i *database.Image) Document {
	return Document{
		ID:     i.ID,
		Type:   mediatypes.Image.String(),
		Name:   i.Name,
		Path:   i.Path,
		Actors: i.Actors,
		Labels: i.Labels,
		Scene:  i.Scene,
	}
}

// Hit is one search result.
type Hit struct {
	ID    string  `json:"id"`
	Type  string  `json:"type"`
	Name  string  `json:"name"`
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// Index wraps a bleve index directory.
type Index struct {
	index bleve.Index
	path  string
}

func buildMapping() *mapping.IndexMappingImpl {
	docMapping := bleve.NewDocumentMapping()

	keyword := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("id", keyword)
	docMapping.AddFieldMappingsAt("type", keyword)
	docMapping.AddFieldMappingsAt("scene", keyword)
	docMapping.AddFieldMappingsAt("actors", keyword)
	docMapping.AddFieldMappingsAt("labels", keyword)

	docMapping.AddFieldMappingsAt("name", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("path", bleve.NewTextFieldMapping())

	m := bleve.NewIndexMapping()
	m.DefaultMapping = docMapping
	return m
}

// Open opens the index at path, creating it if the directory does not
// exist. An empty path gives an in-memory index.
func Open(path string) (*Index, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(buildMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory search index: %w", err)
		}
		return &Index{index: idx}, nil
	}

	var idx bleve.Index
	var err error
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create search index parent: %w", err)
		}
		idx, err = bleve.New(path, buildMapping())
		if err == nil {
			logging.Info("Created search index at %s", path)
		}
	} else {
		idx, err = bleve.Open(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open search index %s: %w", path, err)
	}

	return &Index{index: idx, path: path}, nil
}

// Close releases the index.
func (i *Index) Close() error {
	if i == nil || i.index == nil {
		return nil
	}
	return i.index.Close()
}

func record(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.SearchIndexOpsTotal.WithLabelValues(op, status).Inc()
}

// Index adds or replaces documents in one batch. Re-indexing the same id
// overwrites the previous document.
func (i *Index) Index(ctx context.Context, docs ...Document) (err error) {
	defer func() { record("index", err) }()

	if len(docs) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := i.index.NewBatch()
	for _, d := range docs {
		if err := batch.Index(d.ID, d); err != nil {
			return fmt.Errorf("failed to index %s: %w", d.ID, err)
		}
	}
	return i.index.Batch(batch)
}

// Remove deletes documents by id. Unknown ids are ignored.
func (i *Index) Remove(ctx context.Context, ids ...string) (err error) {
	defer func() { record("remove", err) }()

	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := i.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return i.index.Batch(batch)
}

// Search runs a query-string search, optionally restricted to one library
// type (mediatypes.None searches everything). An empty query matches all.
func (i *Index) Search(ctx context.Context, q string, t mediatypes.LibraryType, limit int) (hits []Hit, err error) {
	defer func() { record("search", err) }()

	if limit <= 0 {
		limit = 20
	}

	var base query.Query
	if q == "" {
		base = bleve.NewMatchAllQuery()
	} else {
		base = bleve.NewQueryStringQuery(q)
	}

	if t != mediatypes.None {
		typeQuery := bleve.NewTermQuery(t.String())
		typeQuery.SetField("type")
		base = bleve.NewConjunctionQuery(base, typeQuery)
	}

	req := bleve.NewSearchRequestOptions(base, limit, 0, false)
	req.Fields = []string{"type", "name", "path"}

	res, err := i.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	hits = make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		hit.Type, _ = h.Fields["type"].(string)
		hit.Name, _ = h.Fields["name"].(string)
		hit.Path, _ = h.Fields["path"].(string)
		hits = append(hits, hit)
	}
	return hits, nil
}

// Count returns the number of indexed documents.
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}
