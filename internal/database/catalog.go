package database

import (
	"context"
	"errors"
	"fmt"

	"media-ingest/internal/mediatypes"
)

// Catalog groups the typed collections of one database.
type Catalog struct {
	*Database

	Scenes  *Collection[*Scene]
	Images  *Collection[*Image]
	Actors  *Collection[*Actor]
	Labels  *Collection[*Label]
	Missing *Collection[*MissingItem]
}

// Open opens the database at dbPath and binds the catalog collections.
func Open(ctx context.Context, dbPath string) (*Catalog, error) {
	db, err := New(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	return NewCatalog(db), nil
}

// NewCatalog binds the catalog collections to an open database.
func NewCatalog(db *Database) *Catalog {
	return &Catalog{
		Database: db,
		Scenes:   NewCollection[*Scene](db, CollectionScenes),
		Images:   NewCollection[*Image](db, CollectionImages),
		Actors:   NewCollection[*Actor](db, CollectionActors),
		Labels:   NewCollection[*Label](db, CollectionLabels),
		Missing:  NewCollection[*MissingItem](db, CollectionMissing),
	}
}

// ExistsByPath reports whether an entity of library type t is stored under
// exactly path.
func (c *Catalog) ExistsByPath(ctx context.Context, t mediatypes.LibraryType, path string) (bool, error) {
	var err error
	switch t {
	case mediatypes.Video:
		_, err = c.Scenes.GetByPath(ctx, path)
	case mediatypes.Image:
		_, err = c.Images.GetByPath(ctx, path)
	default:
		return false, fmt.Errorf("no collection for library type %v", t)
	}

	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Counts holds the number of documents per collection.
type Counts struct {
	Scenes  int `json:"scenes"`
	Images  int `json:"images"`
	Actors  int `json:"actors"`
	Labels  int `json:"labels"`
	Missing int `json:"missing"`
}

// Counts returns the size of every collection.
func (c *Catalog) Counts(ctx context.Context) (Counts, error) {
	var counts Counts
	var err error

	if counts.Scenes, err = c.Scenes.Count(ctx); err != nil {
		return counts, err
	}
	if counts.Images, err = c.Images.Count(ctx); err != nil {
		return counts, err
	}
	if counts.Actors, err = c.Actors.Count(ctx); err != nil {
		return counts, err
	}
	if counts.Labels, err = c.Labels.Count(ctx); err != nil {
		return counts, err
	}
	counts.Missing, err = c.Missing.Count(ctx)
	return counts, err
}
