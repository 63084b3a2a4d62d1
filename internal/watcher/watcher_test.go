package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"media-ingest/internal/mediatypes"
)

type recorder struct {
	mu        sync.Mutex
	paths     []string
	completes int
	added     chan string
	ready     chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		added: make(chan string, 100),
		ready: make(chan struct{}, 10),
	}
}

func (r *recorder) onAdded(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
	r.added <- path
}

func (r *recorder) onComplete() {
	r.mu.Lock()
	r.completes++
	r.mu.Unlock()
	r.ready <- struct{}{}
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]string(nil), r.paths...)
	sort.Strings(out)
	return out
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func waitReady(t *testing.T, r *recorder) {
	t.Helper()
	select {
	case <-r.ready:
	case <-time.After(5 * time.Second):
		t.Fatal("Initial scan did not complete")
	}
}

func waitAdded(t *testing.T, r *recorder, expected string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case p := <-r.added:
			if p == expected {
				return
			}
		case <-deadline:
			t.Fatalf("Expected %s to be reported", expected)
		}
	}
}

func stopWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := w.Stop(ctx); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestInitialScan(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.jpg"))
	touch(t, filepath.Join(root, "sub", "b.PNG"))
	touch(t, filepath.Join(root, "sub", "deep", "c.webp"))
	touch(t, filepath.Join(root, ".hidden.jpg"))
	touch(t, filepath.Join(root, ".cache", "d.jpg"))
	touch(t, filepath.Join(root, "skip", "e.jpg"))
	touch(t, filepath.Join(root, "clip.mp4"))
	touch(t, filepath.Join(root, "$_f.jpg"))
	touch(t, filepath.Join(root, "notes.txt"))

	rec := newRecorder()
	w, err := New(Config{
		Type:     mediatypes.Image,
		Roots:    []string{root},
		Excluder: mediatypes.NewExcluder([]string{"skip"}),
	}, rec.onAdded, rec.onComplete)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer stopWatcher(t, w)

	waitReady(t, rec)
	if !w.Ready() {
		t.Error("Expected Ready() after initial scan")
	}

	expected := []string{
		filepath.Join(root, "a.jpg"),
		filepath.Join(root, "sub", "b.PNG"),
		filepath.Join(root, "sub", "deep", "c.webp"),
	}
	sort.Strings(expected)
	got := rec.snapshot()
	if len(got) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("Expected %s, got %s", expected[i], got[i])
		}
	}
}

func TestMissingRootDoesNotFail(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.mp4"))

	rec := newRecorder()
	w, err := New(Config{
		Type:  mediatypes.Video,
		Roots: []string{filepath.Join(root, "missing"), root},
	}, rec.onAdded, rec.onComplete)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer stopWatcher(t, w)

	waitReady(t, rec)
	if got := rec.snapshot(); len(got) != 1 {
		t.Errorf("Expected the readable root to be scanned, got %v", got)
	}
}

func TestLiveAdd(t *testing.T) {
	root := t.TempDir()

	rec := newRecorder()
	w, err := New(Config{
		Type:        mediatypes.Image,
		Roots:       []string{root},
		SettleDelay: 50 * time.Millisecond,
	}, rec.onAdded, rec.onComplete)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer stopWatcher(t, w)

	waitReady(t, rec)

	target := filepath.Join(root, "c.png")
	touch(t, target)
	touch(t, filepath.Join(root, ".c.png.partial"))
	waitAdded(t, rec, target)

	nested := filepath.Join(root, "new", "d.jpg")
	touch(t, nested)
	waitAdded(t, rec, nested)

	rec.mu.Lock()
	completes := rec.completes
	rec.mu.Unlock()
	if completes != 1 {
		t.Errorf("Expected initial scan completion once, got %d", completes)
	}
	for _, p := range rec.snapshot() {
		if filepath.Base(p) == ".c.png.partial" {
			t.Error("Hidden file was reported")
		}
	}
}

func TestPollingAdd(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "old.jpg"))

	rec := newRecorder()
	w, err := New(Config{
		Type:         mediatypes.Image,
		Roots:        []string{root},
		UsePolling:   true,
		PollInterval: 20 * time.Millisecond,
	}, rec.onAdded, rec.onComplete)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer stopWatcher(t, w)

	waitReady(t, rec)
	waitAdded(t, rec, filepath.Join(root, "old.jpg"))

	target := filepath.Join(root, "new.jpg")
	touch(t, target)
	waitAdded(t, rec, target)

	// Give a few more polls the chance to report duplicates.
	time.Sleep(100 * time.Millisecond)
	count := 0
	for _, p := range rec.snapshot() {
		if p == target {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected new.jpg once, got %d", count)
	}
}

func TestStopIsFinal(t *testing.T) {
	root := t.TempDir()

	rec := newRecorder()
	w, err := New(Config{
		Type:        mediatypes.Image,
		Roots:       []string{root},
		SettleDelay: 20 * time.Millisecond,
	}, rec.onAdded, rec.onComplete)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	waitReady(t, rec)

	stopWatcher(t, w)
	stopWatcher(t, w)

	touch(t, filepath.Join(root, "late.jpg"))
	time.Sleep(100 * time.Millisecond)
	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("Expected no callbacks after Stop, got %v", got)
	}
}
