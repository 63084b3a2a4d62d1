// Package database is the catalog store: a SQLite document store holding
// scenes, images, actors, labels and missing-item tracking.
//
// Every entity is a JSON document in one table keyed by (collection, id).
// The canonical file path is a separate column with a unique index per
// collection, which backs exact-match GetByPath lookups for the dedup gate
// and rejects a second entity for the same path. Secondary indexes (actors,
// labels, parent scene) live in document_keys and are rewritten on upsert.
//
// Collections are typed with generics:
//
//	cat, err := database.Open(ctx, "/data/catalog.db")
//	scene, err := cat.Scenes.GetByPath(ctx, "/media/videos/a.mp4")
//	if errors.Is(err, database.ErrNotFound) {
//	    // not catalogued
//	}
//	images, err := cat.Images.Query(ctx, database.IndexScene, scene.ID)
//
// The database uses WAL mode with a busy timeout; writes are serialized by an
// in-process lock.
package database
