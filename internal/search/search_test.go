package search

import (
	"context"
	"path/filepath"
	"testing"

	"media-ingest/internal/database"
	"media-ingest/internal/mediatypes"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()

	idx, err := Open(filepath.Join(t.TempDir(), "search.bleve"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestOpenCreatesAndReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "search.bleve")

	idx, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := idx.Index(context.Background(), Document{ID: "scene1", Type: "video", Name: "Beach Day"}); err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	count, err := reopened.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 document after reopen, got %d", count)
	}
}

func TestIndexReplacesByID(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Index(ctx, Document{ID: "scene1", Type: "video", Name: "first"}); err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if err := idx.Index(ctx, Document{ID: "scene1", Type: "video", Name: "second"}); err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	count, _ := idx.Count()
	if count != 1 {
		t.Errorf("Expected 1 document, got %d", count)
	}

	hits, err := idx.Search(ctx, "second", mediatypes.None, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].Name != "second" {
		t.Errorf("Expected the replacement document, got %+v", hits)
	}
}

func TestSearchFiltersByType(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	scene := &database.Scene{ID: "scene1", Name: "sunset", Path: "/videos/sunset.mp4"}
	image := &database.Image{ID: "image1", Name: "sunset", Path: "/images/sunset.jpg"}
	if err := idx.Index(ctx, FromScene(scene), FromImage(image)); err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	all, err := idx.Search(ctx, "sunset", mediatypes.None, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 hits, got %d", len(all))
	}

	images, err := idx.Search(ctx, "sunset", mediatypes.Image, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(images) != 1 || images[0].ID != "image1" {
		t.Errorf("Expected only image1, got %+v", images)
	}
	if len(images) == 1 && images[0].Path != "/images/sunset.jpg" {
		t.Errorf("Expected stored path, got %q", images[0].Path)
	}
}

func TestSearchEmptyMatchesAll(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	docs := []Document{
		{ID: "a", Type: "video", Name: "one"},
		{ID: "b", Type: "video", Name: "two"},
		{ID: "c", Type: "image", Name: "three"},
	}
	if err := idx.Index(ctx, docs...); err != nil {
		t.Fatalf("Index failed: %v", err)
	}

	hits, err := idx.Search(ctx, "", mediatypes.None, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 3 {
		t.Errorf("Expected 3 hits, got %d", len(hits))
	}
}

func TestRemove(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.Index(ctx, Document{ID: "a", Type: "video"}, Document{ID: "b", Type: "video"}); err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	if err := idx.Remove(ctx, "a", "unknown"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	count, _ := idx.Count()
	if count != 1 {
		t.Errorf("Expected 1 document after remove, got %d", count)
	}
}

func TestCanceledContext(t *testing.T) {
	idx := newTestIndex(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := idx.Index(ctx, Document{ID: "a"}); err == nil {
		t.Error("Expected error for canceled context")
	}
}

func TestMemOnly(t *testing.T) {
	idx, err := Open("")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer idx.Close()

	if err := idx.Index(context.Background(), Document{ID: "a", Type: "image", Name: "x"}); err != nil {
		t.Fatalf("Index failed: %v", err)
	}
	count, _ := idx.Count()
	if count != 1 {
		t.Errorf("Expected 1, got %d", count)
	}
}
