package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"media-ingest/internal/database"
	"media-ingest/internal/media"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/queue"
	"media-ingest/internal/search"
	"media-ingest/internal/transcoder"
)

type fakeExtractor struct {
	scenes, actors, labels []string
	err                    error
}

func (f *fakeExtractor) ExtractScenes(context.Context, string) ([]string, error) {
	return f.scenes, f.err
}

func (f *fakeExtractor) ExtractActors(context.Context, string) ([]string, error) {
	return f.actors, f.err
}

func (f *fakeExtractor) ExtractLabels(context.Context, string) ([]string, error) {
	return f.labels, f.err
}

type fakeIndex struct {
	mu   sync.Mutex
	docs map[string]search.Document
}

func (f *fakeIndex) Index(_ context.Context, docs ...search.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docs == nil {
		f.docs = make(map[string]search.Document)
	}
	for _, doc := range docs {
		f.docs[doc.ID] = doc
	}
	return nil
}

type fakeTranscoder struct {
	result transcoder.Result
	err    error
	calls  int
	// during runs inside Transcode, where the real gate commits its output.
	during func()
}

func (f *fakeTranscoder) Transcode(_ context.Context, input string) (transcoder.Result, error) {
	f.calls++
	if f.during != nil {
		f.during()
	}
	if f.err != nil {
		return transcoder.Result{}, f.err
	}
	res := f.result
	if res.Path == "" {
		res.Path = input
	}
	return res, nil
}

type fakePreviewer struct {
	dir   string
	calls int
}

func (f *fakePreviewer) Generate(_ context.Context, sceneID, _ string, _ float64) (string, error) {
	f.calls++
	path := filepath.Join(f.dir, sceneID+".jpg")
	return path, os.WriteFile(path, []byte("jpeg"), 0o644)
}

func openCatalog(t *testing.T) *database.Catalog {
	t.Helper()
	cat, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Failed to open catalog: %v", err)
	}
	t.Cleanup(func() { cat.Close() })
	return cat
}

func writeFile(t *testing.T, path string, data string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func probeResult() *transcoder.ProbeResult {
	return &transcoder.ProbeResult{
		FormatName: "mov,mp4,m4a,3gp,3g2,mj2",
		Duration:   120.5,
		Streams: []transcoder.Stream{
			{Index: 0, CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080, AvgFrameRate: "30/1"},
			{Index: 1, CodecType: "audio", CodecName: "aac"},
		},
	}
}

func TestVideoImport(t *testing.T) {
	ctx := context.Background()
	cat := openCatalog(t)
	idx := &fakeIndex{}
	path := filepath.Join(t.TempDir(), "Ann - Beach Day.mp4")
	writeFile(t, path, "video")

	v := NewVideoImporter(VideoConfig{
		Catalog:    cat,
		Extractor:  &fakeExtractor{actors: []string{"ac_1"}, labels: []string{"la_1"}},
		Index:      idx,
		Transcoder: &fakeTranscoder{result: transcoder.Result{Decision: transcoder.Pass, Probe: probeResult()}},
	})

	if err := v.Import(ctx, path); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	scene, err := cat.Scenes.GetByPath(ctx, path)
	if err != nil {
		t.Fatalf("Expected scene to be catalogued: %v", err)
	}
	if scene.Name != "Ann - Beach Day" {
		t.Errorf("Expected name 'Ann - Beach Day', got %q", scene.Name)
	}
	if scene.Width != 1920 || scene.Height != 1080 {
		t.Errorf("Expected 1920x1080, got %dx%d", scene.Width, scene.Height)
	}
	if scene.Codec != "h264" {
		t.Errorf("Expected codec h264, got %q", scene.Codec)
	}
	if scene.Duration != 120.5 {
		t.Errorf("Expected duration 120.5, got %v", scene.Duration)
	}
	if scene.Size != int64(len("video")) {
		t.Errorf("Expected size %d, got %d", len("video"), scene.Size)
	}
	if len(scene.Actors) != 1 || scene.Actors[0] != "ac_1" {
		t.Errorf("Expected actors [ac_1], got %v", scene.Actors)
	}
	if scene.OriginalPath != "" {
		t.Errorf("Expected no original path for a passed file, got %q", scene.OriginalPath)
	}
	if _, ok := idx.docs[scene.ID]; !ok {
		t.Error("Expected scene to be indexed")
	}
}

func TestVideoImportTranscoded(t *testing.T) {
	ctx := context.Background()
	cat := openCatalog(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "clip.avi")
	output := filepath.Join(dir, "clip.mp4")
	marker := filepath.Join(dir, "$_clip.avi")
	writeFile(t, output, "transcoded")
	writeFile(t, marker, "original")

	v := NewVideoImporter(VideoConfig{
		Catalog:   cat,
		Extractor: &fakeExtractor{},
		Index:     &fakeIndex{},
		Transcoder: &fakeTranscoder{result: transcoder.Result{
			Decision:     transcoder.TranscodeRequired,
			Path:         output,
			OriginalPath: marker,
			Probe:        probeResult(),
		}},
	})

	if err := v.Import(ctx, input); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	scene, err := cat.Scenes.GetByPath(ctx, output)
	if err != nil {
		t.Fatalf("Expected scene under the transcoded path: %v", err)
	}
	if scene.OriginalPath != marker {
		t.Errorf("Expected original path %q, got %q", marker, scene.OriginalPath)
	}
	if scene.Actors == nil || scene.Labels == nil {
		t.Error("Expected empty id lists, got nil")
	}
}

func TestVideoImportReservesTranscodeOutput(t *testing.T) {
	ctx := context.Background()
	cat := openCatalog(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "clip.avi")
	output := filepath.Join(dir, "clip.mp4")
	writeFile(t, output, "transcoded")

	q := queue.New(mediatypes.Video, func(context.Context, string) error { return nil })
	t.Cleanup(func() { _ = q.Close(context.Background()) })

	pushedDuring := true
	persistedDuring := false
	tc := &fakeTranscoder{
		result: transcoder.Result{
			Decision:     transcoder.TranscodeRequired,
			Path:         output,
			OriginalPath: filepath.Join(dir, "$_clip.avi"),
			Probe:        probeResult(),
		},
		during: func() {
			pushedDuring = q.Push(output)
			_, err := cat.Scenes.GetByPath(ctx, output)
			persistedDuring = err == nil
		},
	}

	v := NewVideoImporter(VideoConfig{
		Catalog:    cat,
		Extractor:  &fakeExtractor{},
		Index:      &fakeIndex{},
		Transcoder: tc,
		Reserve:    q.Reserve,
	})
	if err := v.Import(ctx, input); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if persistedDuring {
		t.Fatal("Expected scene to be persisted after the transcode")
	}
	if pushedDuring {
		t.Error("Expected output path to be refused while its source is importing")
	}
	if _, err := cat.Scenes.GetByPath(ctx, output); err != nil {
		t.Fatalf("Expected scene under the transcoded path: %v", err)
	}
	if !q.Push(output) {
		t.Error("Expected reservation to be released after import")
	}
}

func TestVideoImportPassReleasesReservation(t *testing.T) {
	ctx := context.Background()
	cat := openCatalog(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "clip.webm")
	writeFile(t, input, "video")

	var reserved []string
	released := 0
	tc := &fakeTranscoder{result: transcoder.Result{Decision: transcoder.Pass, Probe: probeResult()}}

	v := NewVideoImporter(VideoConfig{
		Catalog:    cat,
		Extractor:  &fakeExtractor{},
		Index:      &fakeIndex{},
		Transcoder: tc,
		Reserve: func(path string) func() {
			reserved = append(reserved, path)
			return func() { released++ }
		},
	})
	if err := v.Import(ctx, input); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	expected := filepath.Join(dir, "clip.mp4")
	if len(reserved) != 1 || reserved[0] != expected {
		t.Errorf("Expected reservation of %s, got %v", expected, reserved)
	}
	if released != 1 {
		t.Errorf("Expected exactly one release, got %d", released)
	}
}

func TestVideoImportSkipsCatalogued(t *testing.T) {
	ctx := context.Background()
	cat := openCatalog(t)
	path := filepath.Join(t.TempDir(), "a.mp4")
	writeFile(t, path, "video")

	if err := cat.Scenes.Upsert(ctx, &database.Scene{ID: "sc_existing", Name: "a", Path: path}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	tc := &fakeTranscoder{}
	v := NewVideoImporter(VideoConfig{Catalog: cat, Extractor: &fakeExtractor{}, Index: &fakeIndex{}, Transcoder: tc})
	if err := v.Import(ctx, path); err != nil {
		t.Errorf("Expected duplicate to be skipped without error, got %v", err)
	}
	if tc.calls != 0 {
		t.Errorf("Expected no transcode for a catalogued path, got %d calls", tc.calls)
	}
	if n, _ := cat.Scenes.Count(ctx); n != 1 {
		t.Errorf("Expected 1 scene, got %d", n)
	}
}

func TestVideoImportErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("transcode", func(t *testing.T) {
		cat := openCatalog(t)
		path := filepath.Join(t.TempDir(), "a.mkv")
		writeFile(t, path, "video")

		v := NewVideoImporter(VideoConfig{
			Catalog:    cat,
			Extractor:  &fakeExtractor{},
			Index:      &fakeIndex{},
			Transcoder: &fakeTranscoder{err: transcoder.ErrVerifyFailed},
		})
		err := v.Import(ctx, path)
		if !errors.Is(err, transcoder.ErrVerifyFailed) {
			t.Fatalf("Expected ErrVerifyFailed, got %v", err)
		}
		if !strings.Contains(err.Error(), path) {
			t.Errorf("Expected error to name the path, got %v", err)
		}
		if n, _ := cat.Scenes.Count(ctx); n != 0 {
			t.Errorf("Expected no scene after a failed import, got %d", n)
		}
	})

	t.Run("extract", func(t *testing.T) {
		cat := openCatalog(t)
		path := filepath.Join(t.TempDir(), "a.mp4")
		writeFile(t, path, "video")

		boom := errors.New("boom")
		v := NewVideoImporter(VideoConfig{
			Catalog:    cat,
			Extractor:  &fakeExtractor{err: boom},
			Index:      &fakeIndex{},
			Transcoder: &fakeTranscoder{result: transcoder.Result{Probe: probeResult()}},
		})
		if err := v.Import(ctx, path); !errors.Is(err, boom) {
			t.Errorf("Expected extractor error, got %v", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		cat := openCatalog(t)
		path := filepath.Join(t.TempDir(), "gone.mp4")

		v := NewVideoImporter(VideoConfig{
			Catalog:    cat,
			Extractor:  &fakeExtractor{},
			Index:      &fakeIndex{},
			Transcoder: &fakeTranscoder{result: transcoder.Result{Probe: probeResult()}},
		})
		if err := v.Import(ctx, path); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("Expected not-exist error, got %v", err)
		}
	})
}

func TestVideoImportPreview(t *testing.T) {
	ctx := context.Background()
	cat := openCatalog(t)
	idx := &fakeIndex{}
	path := filepath.Join(t.TempDir(), "beach.mp4")
	writeFile(t, path, "video")
	previewer := &fakePreviewer{dir: t.TempDir()}

	v := NewVideoImporter(VideoConfig{
		Catalog:    cat,
		Extractor:  &fakeExtractor{actors: []string{"ac_1"}},
		Index:      idx,
		Transcoder: &fakeTranscoder{result: transcoder.Result{Probe: probeResult()}},
		Previewer:  previewer,
	})
	if err := v.Import(ctx, path); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	scene, err := cat.Scenes.GetByPath(ctx, path)
	if err != nil {
		t.Fatalf("GetByPath failed: %v", err)
	}
	if scene.Thumbnail == "" {
		t.Fatal("Expected scene thumbnail to be set")
	}
	image, err := cat.Images.Get(ctx, scene.Thumbnail)
	if err != nil {
		t.Fatalf("Expected preview image entity: %v", err)
	}
	if image.Scene != scene.ID {
		t.Errorf("Expected preview linked to %s, got %q", scene.ID, image.Scene)
	}
	if image.Name != "beach (preview)" {
		t.Errorf("Expected name 'beach (preview)', got %q", image.Name)
	}
	if len(idx.docs) != 2 {
		t.Errorf("Expected scene and preview indexed, got %d docs", len(idx.docs))
	}

	// Nothing left to do.
	n, err := v.PreviewMissing(ctx)
	if err != nil {
		t.Fatalf("PreviewMissing failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected 0 previews generated, got %d", n)
	}
	if previewer.calls != 1 {
		t.Errorf("Expected 1 preview call, got %d", previewer.calls)
	}
}

func TestPreviewMissing(t *testing.T) {
	ctx := context.Background()
	cat := openCatalog(t)
	dir := t.TempDir()

	for _, s := range []*database.Scene{
		{ID: "sc_1", Name: "one", Path: filepath.Join(dir, "one.mp4")},
		{ID: "sc_2", Name: "two", Path: filepath.Join(dir, "two.mp4"), Thumbnail: "im_x"},
		{ID: "sc_3", Name: "three", Path: filepath.Join(dir, "three.mp4")},
	} {
		if err := cat.Scenes.Upsert(ctx, s); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	previewer := &fakePreviewer{dir: t.TempDir()}
	v := NewVideoImporter(VideoConfig{Catalog: cat, Extractor: &fakeExtractor{}, Index: &fakeIndex{}, Transcoder: &fakeTranscoder{}, Previewer: previewer})

	n, err := v.PreviewMissing(ctx)
	if err != nil {
		t.Fatalf("PreviewMissing failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 previews, got %d", n)
	}
	for _, id := range []string{"sc_1", "sc_3"} {
		scene, err := cat.Scenes.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get %s failed: %v", id, err)
		}
		if scene.Thumbnail == "" {
			t.Errorf("Expected %s to have a thumbnail", id)
		}
	}

	disabled := NewVideoImporter(VideoConfig{Catalog: cat, Extractor: &fakeExtractor{}, Index: &fakeIndex{}, Transcoder: &fakeTranscoder{}})
	if n, err := disabled.PreviewMissing(ctx); n != 0 || err != nil {
		t.Errorf("Expected no-op without previewer, got %d, %v", n, err)
	}
}

func TestImageImport(t *testing.T) {
	ctx := context.Background()
	cat := openCatalog(t)
	idx := &fakeIndex{}
	path := filepath.Join(t.TempDir(), "photos", "beach.jpg")
	writeFile(t, path, "jpeg")

	reads := 0
	m := NewImageImporter(ImageConfig{
		Catalog:    cat,
		Extractor:  &fakeExtractor{scenes: []string{"sc_1", "sc_2"}, labels: []string{"la_1"}},
		Index:      idx,
		ReadImages: true,
		ReadInfo: func(string) (media.ImageInfo, error) {
			reads++
			return media.ImageInfo{Width: 800, Height: 600, Hash: "00ff00ff00ff00ff"}, nil
		},
	})

	if err := m.Import(ctx, path); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	image, err := cat.Images.GetByPath(ctx, path)
	if err != nil {
		t.Fatalf("Expected image to be catalogued: %v", err)
	}
	if reads != 1 {
		t.Errorf("Expected 1 read, got %d", reads)
	}
	if image.Width != 800 || image.Height != 600 || image.Hash != "00ff00ff00ff00ff" {
		t.Errorf("Unexpected image info: %dx%d %q", image.Width, image.Height, image.Hash)
	}
	if image.Scene != "sc_1" {
		t.Errorf("Expected scene sc_1, got %q", image.Scene)
	}
	if image.Name != "beach" {
		t.Errorf("Expected name 'beach', got %q", image.Name)
	}
	if _, ok := idx.docs[image.ID]; !ok {
		t.Error("Expected image to be indexed")
	}

	// A second import of the same path is a no-op.
	if err := m.Import(ctx, path); err != nil {
		t.Errorf("Expected duplicate to be skipped without error, got %v", err)
	}
	if n, _ := cat.Images.Count(ctx); n != 1 {
		t.Errorf("Expected 1 image, got %d", n)
	}
}

func TestImageImportReadGate(t *testing.T) {
	tests := []struct {
		name          string
		readImages    bool
		beforeInitial bool
		initialDone   bool
		expectRead    bool
	}{
		{"disabled", false, true, true, false},
		{"after initial scan", true, false, true, true},
		{"during initial scan", true, false, false, false},
		{"during initial scan allowed", true, true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			cat := openCatalog(t)
			path := filepath.Join(t.TempDir(), "a.png")
			writeFile(t, path, "png")

			read := false
			m := NewImageImporter(ImageConfig{
				Catalog:               cat,
				Extractor:             &fakeExtractor{},
				Index:                 &fakeIndex{},
				ReadImages:            tt.readImages,
				ReadBeforeInitialScan: tt.beforeInitial,
				InitialScanDone:       func() bool { return tt.initialDone },
				ReadInfo: func(string) (media.ImageInfo, error) {
					read = true
					return media.ImageInfo{Width: 1, Height: 1}, nil
				},
			})

			if err := m.Import(ctx, path); err != nil {
				t.Fatalf("Import failed: %v", err)
			}
			if read != tt.expectRead {
				t.Errorf("Expected read=%v, got %v", tt.expectRead, read)
			}
		})
	}
}

func TestImageImportReadError(t *testing.T) {
	ctx := context.Background()
	cat := openCatalog(t)
	path := filepath.Join(t.TempDir(), "broken.jpg")
	writeFile(t, path, "not a jpeg")

	m := NewImageImporter(ImageConfig{
		Catalog:    cat,
		Extractor:  &fakeExtractor{},
		Index:      &fakeIndex{},
		ReadImages: true,
	})

	if err := m.Import(ctx, path); err == nil {
		t.Error("Expected error decoding a corrupt image")
	}
	if n, _ := cat.Images.Count(ctx); n != 0 {
		t.Errorf("Expected no image after a failed read, got %d", n)
	}
}

func TestPersistConflict(t *testing.T) {
	if !errors.Is(persistConflict(database.ErrPathConflict), errDuplicate) {
		t.Error("Expected path conflict to map to errDuplicate")
	}
	boom := errors.New("boom")
	if !errors.Is(persistConflict(boom), boom) {
		t.Error("Expected other errors to pass through")
	}
	if persistConflict(nil) != nil {
		t.Error("Expected nil to stay nil")
	}
}

func TestNameFromPath(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/media/videos/Ann - Beach.mp4", "Ann - Beach"},
		{"/media/a.b.c.jpg", "a.b.c"},
		{"noext", "noext"},
	}
	for _, tt := range tests {
		if got := nameFromPath(tt.path); got != tt.expected {
			t.Errorf("nameFromPath(%q) = %q, expected %q", tt.path, got, tt.expected)
		}
	}
}
