package ingest

import (
	"context"
	"errors"
	"fmt"

	"media-ingest/internal/mediatypes"
)

// ErrDedupCheck marks a failed catalog lookup. The path is dropped and the
// next reconciliation scan finds it again.
var ErrDedupCheck = errors.New("dedup check failed")

// PathLookup finds catalogued entities by exact path.
type PathLookup interface {
	ExistsByPath(ctx context.Context, t mediatypes.LibraryType, path string) (bool, error)
}

// DedupGate rejects paths that are already catalogued.
type DedupGate struct {
	catalog PathLookup
}

// NewDedupGate returns a gate backed by catalog.
func NewDedupGate(catalog PathLookup) *DedupGate {
	return &DedupGate{catalog: catalog}
}

// ShouldEnqueue reports whether no entity of type t is stored under exactly
// path. Paths are compared as given; symlinks are not resolved.
func (g *DedupGate) ShouldEnqueue(ctx context.Context, path string, t mediatypes.LibraryType) (bool, error) {
	exists, err := g.catalog.ExistsByPath(ctx, t, path)
	if err != nil {
		return false, fmt.Errorf("%w: %s: %v", ErrDedupCheck, path, err)
	}
	return !exists, nil
}
