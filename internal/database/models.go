package database

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Collection names.
const (
	CollectionScenes  = "scenes"
	CollectionImages  = "images"
	CollectionActors  = "actors"
	CollectionLabels  = "labels"
	CollectionMissing = "missing"
)

// Secondary index names used with Collection.Query.
const (
	IndexActors = "actors"
	IndexLabels = "labels"
	IndexScene  = "scene"
	IndexType   = "type"
)

// Document is implemented by every entity stored in a Collection.
type Document interface {
	DocID() string
	// DocPath is the canonical path used for dedup lookups, or "" when the
	// entity has no backing file.
	DocPath() string
	// IndexKeys returns secondary index keys keyed by index name.
	IndexKeys() map[string][]string
}

// Scene is a catalogued video file.
type Scene struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	AddedOn   time.Time `json:"addedOn"`
	Size      int64     `json:"size"`
	Duration  float64   `json:"duration,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	FPS       float64   `json:"fps,omitempty"`
	Codec     string    `json:"codec,omitempty"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	Actors    []string  `json:"actors"`
	Labels    []string  `json:"labels"`
	// OriginalPath is the renamed original kept after a transcode.
	OriginalPath string `json:"originalPath,omitempty"`
}

func (s *Scene) DocID() string   { return s.ID }
func (s *Scene) DocPath() string { return s.Path }

func (s *Scene) IndexKeys() map[string][]string {
	return map[string][]string{
		IndexActors: s.Actors,
		IndexLabels: s.Labels,
	}
}

// Image is a catalogued image file, or a scene preview stored under the
// previews directory.
type Image struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	AddedOn time.Time `json:"addedOn"`
	Size    int64     `json:"size"`
	Width   int       `json:"width,omitempty"`
	Height  int       `json:"height,omitempty"`
	Hash    string    `json:"hash,omitempty"`
	Scene   string    `json:"scene,omitempty"`
	Actors  []string  `json:"actors"`
	Labels  []string  `json:"labels"`
}

func (i *Image) DocID() string   { return i.ID }
func (i *Image) DocPath() string { return i.Path }

func (i *Image) IndexKeys() map[string][]string {
	keys := map[string][]string{
		IndexActors: i.Actors,
		IndexLabels: i.Labels,
	}
	if i.Scene != "" {
		keys[IndexScene] = []string{i.Scene}
	}
	return keys
}

// Actor is matched against file paths by name and aliases.
type Actor struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Aliases []string  `json:"aliases,omitempty"`
	AddedOn time.Time `json:"addedOn"`
}

func (a *Actor) DocID() string                  { return a.ID }
func (a *Actor) DocPath() string                { return "" }
func (a *Actor) IndexKeys() map[string][]string { return nil }

// Label is matched against file paths by name and aliases.
type Label struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Aliases []string  `json:"aliases,omitempty"`
	AddedOn time.Time `json:"addedOn"`
}

func (l *Label) DocID() string                  { return l.ID }
func (l *Label) DocPath() string                { return "" }
func (l *Label) IndexKeys() map[string][]string { return nil }

// MissingItem tracks a catalog entity whose backing file is gone. Its ID is
// the entity ID so an entity is tracked at most once.
type MissingItem struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"` // "scene" or "image"
	Path       string    `json:"path"`
	DetectedAt time.Time `json:"detectedAt"`
}

func (m *MissingItem) DocID() string { return m.ID }

// The missing collection is looked up by entity id, never by path.
func (m *MissingItem) DocPath() string { return "" }

func (m *MissingItem) IndexKeys() map[string][]string {
	return map[string][]string{IndexType: {m.Type}}
}

func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewSceneID returns a fresh scene id ("sc_" + 32 hex digits).
func NewSceneID() string { return newID("sc_") }

// NewImageID returns a fresh image id.
func NewImageID() string { return newID("im_") }

// NewActorID returns a fresh actor id.
func NewActorID() string { return newID("ac_") }

// NewLabelID returns a fresh label id.
func NewLabelID() string { return newID("la_") }
