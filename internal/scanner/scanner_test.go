package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"media-ingest/internal/ingest"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metrics"
	"media-ingest/internal/transcoder"
)

// memCatalog records every pushed path as imported, standing in for a
// queue whose worker always succeeds.
type memCatalog struct {
	mu    sync.Mutex
	paths map[string]mediatypes.LibraryType
	order []string
}

func newMemCatalog() *memCatalog {
	return &memCatalog{paths: make(map[string]mediatypes.LibraryType)}
}

func (c *memCatalog) ExistsByPath(_ context.Context, t mediatypes.LibraryType, path string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	got, ok := c.paths[path]
	return ok && got == t, nil
}

type importingQueue struct {
	t       mediatypes.LibraryType
	catalog *memCatalog
}

func (q importingQueue) Push(path string) bool {
	q.catalog.mu.Lock()
	defer q.catalog.mu.Unlock()
	q.catalog.paths[path] = q.t
	q.catalog.order = append(q.catalog.order, path)
	return true
}

func newTestAdmitter(c *memCatalog, excluder *mediatypes.Excluder) *ingest.Admitter {
	return ingest.NewAdmitter(excluder, ingest.NewDedupGate(c), ingest.NewFoundCounts(),
		importingQueue{t: mediatypes.Video, catalog: c},
		importingQueue{t: mediatypes.Image, catalog: c})
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanAdmitsAndRotates(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.3gp"))
	touch(t, filepath.Join(root, "b.mp4"))
	touch(t, filepath.Join(root, "sub", "c.mkv"))
	touch(t, filepath.Join(root, "sub", "cover.jpg"))
	touch(t, filepath.Join(root, ".trash", "d.mp4"))
	touch(t, filepath.Join(root, "samples", "e.mp4"))

	catalog := newMemCatalog()
	admitter := newTestAdmitter(catalog, mediatypes.NewExcluder([]string{"samples"}))
	s := New(Config{VideoPaths: []string{root}}, admitter, nil)

	res, err := s.Scan(context.Background(), mediatypes.Video)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if res.Admitted != 3 {
		t.Errorf("Expected 3 admitted, got %d", res.Admitted)
	}
	if res.Folders != 2 {
		t.Errorf("Expected 2 folders, got %d", res.Folders)
	}
	if got := admitter.Counts().Get(mediatypes.Video); got.Current != 3 || got.Previous != 0 {
		t.Errorf("Expected {0 3}, got %+v", got)
	}

	// Depth first: files of root before those of sub, sorted within a dir.
	expected := []string{
		filepath.Join(root, "a.3gp"),
		filepath.Join(root, "b.mp4"),
		filepath.Join(root, "sub", "c.mkv"),
	}
	catalog.mu.Lock()
	order := append([]string(nil), catalog.order...)
	catalog.mu.Unlock()
	if len(order) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, order)
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Errorf("Position %d: expected %s, got %s", i, expected[i], order[i])
		}
	}

	res, err = s.Scan(context.Background(), mediatypes.Video)
	if err != nil {
		t.Fatalf("Second scan failed: %v", err)
	}
	if res.Admitted != 0 || res.Duplicates != 3 {
		t.Errorf("Expected 0 admitted and 3 duplicates, got %+v", res)
	}
	if got := admitter.Counts().Get(mediatypes.Video); got.Current != 0 || got.Previous != 3 {
		t.Errorf("Expected {3 0}, got %+v", got)
	}
}

func TestScanSkipsUnreadableRoot(t *testing.T) {
	good := t.TempDir()
	touch(t, filepath.Join(good, "a.png"))

	catalog := newMemCatalog()
	s := New(Config{ImagePaths: []string{filepath.Join(good, "missing"), good}}, newTestAdmitter(catalog, nil), nil)

	res, err := s.Scan(context.Background(), mediatypes.Image)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if res.RootErrors != 1 {
		t.Errorf("Expected 1 root error, got %d", res.RootErrors)
	}
	if res.Admitted != 1 {
		t.Errorf("Expected the readable root to be scanned, got %d admitted", res.Admitted)
	}
}

func TestScanSymlinkedRoot(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "nas")
	touch(t, filepath.Join(target, "album", "a.png"))

	root := filepath.Join(base, "images")
	if err := os.Symlink(target, root); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	s := New(Config{ImagePaths: []string{root}}, newTestAdmitter(newMemCatalog(), nil), nil)
	res, err := s.Scan(context.Background(), mediatypes.Image)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if res.Admitted != 1 || res.RootErrors != 0 {
		t.Errorf("Expected 1 admitted and no root errors, got %d admitted, %d root errors", res.Admitted, res.RootErrors)
	}
	if res.Folders != 2 {
		t.Errorf("Expected 2 folders, got %d", res.Folders)
	}
}

func TestScanCanceled(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.png"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := New(Config{ImagePaths: []string{root}}, newTestAdmitter(newMemCatalog(), nil), nil)
	if _, err := s.Scan(ctx, mediatypes.Image); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

type fakeRecoverer struct {
	calls []string
}

func (f *fakeRecoverer) Recover(_ context.Context, marker string) (string, transcoder.RecoverAction, error) {
	f.calls = append(f.calls, marker)
	original := mediatypes.OriginalFromRenamed(marker)
	if err := os.Rename(marker, original); err != nil {
		return "", transcoder.RecoverNone, err
	}
	return original, transcoder.RecoverRestored, nil
}

func TestScanRecoversRenamedOriginals(t *testing.T) {
	root := t.TempDir()
	marker := filepath.Join(root, "$_a.3gp")
	touch(t, marker)

	catalog := newMemCatalog()
	rec := &fakeRecoverer{}
	s := New(Config{VideoPaths: []string{root}}, newTestAdmitter(catalog, nil), rec)

	res, err := s.Scan(context.Background(), mediatypes.Video)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(rec.calls) != 1 || rec.calls[0] != marker {
		t.Errorf("Expected recovery of %s, got %v", marker, rec.calls)
	}
	if res.Recovered != 1 || res.Admitted != 1 {
		t.Errorf("Expected 1 recovered and admitted, got %+v", res)
	}
	if ok, _ := catalog.ExistsByPath(context.Background(), mediatypes.Video, filepath.Join(root, "a.3gp")); !ok {
		t.Error("Expected restored original to be admitted")
	}
}

func TestSchedulerCycle(t *testing.T) {
	videos, images := t.TempDir(), t.TempDir()
	touch(t, filepath.Join(videos, "a.mp4"))
	touch(t, filepath.Join(images, "b.jpg"))

	catalog := newMemCatalog()
	s := New(Config{VideoPaths: []string{videos}, ImagePaths: []string{images}}, newTestAdmitter(catalog, nil), nil)

	afterVideo := make(chan struct{}, 1)
	var cycleResults []Result
	sched := NewScheduler(s, 0, Hooks{
		AfterVideo: func(context.Context) { afterVideo <- struct{}{} },
		AfterCycle: func(_ context.Context, results []Result) { cycleResults = results },
	})
	defer sched.Stop()

	results, err := sched.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}
	if len(results) != 2 || results[0].Type != mediatypes.Video || results[1].Type != mediatypes.Image {
		t.Fatalf("Expected video then image results, got %+v", results)
	}
	if len(cycleResults) != 2 {
		t.Error("Expected AfterCycle to receive the results")
	}

	select {
	case <-afterVideo:
	case <-time.After(5 * time.Second):
		t.Error("Expected AfterVideo hook to run")
	}

	catalog.mu.Lock()
	order := append([]string(nil), catalog.order...)
	catalog.mu.Unlock()
	if len(order) != 2 || filepath.Ext(order[0]) != ".mp4" {
		t.Errorf("Expected the video to be admitted first, got %v", order)
	}
}

func skippedCycles(t *testing.T) float64 {
	t.Helper()
	var m dto.Metric
	if err := metrics.ScanCyclesSkipped.Write(&m); err != nil {
		t.Fatalf("Failed to read metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestSchedulerNoOverlap(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.mp4"))

	release := make(chan struct{})
	s := New(Config{VideoPaths: []string{root}}, newTestAdmitter(newMemCatalog(), nil), nil)
	sched := NewScheduler(s, 0, Hooks{
		AfterVideo: func(context.Context) {},
		AfterCycle: func(context.Context, []Result) { <-release },
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = sched.Cycle(context.Background())
	}()

	deadline := time.Now().Add(5 * time.Second)
	for !sched.IsScanning() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	skipped := skippedCycles(t)
	if _, err := sched.Cycle(context.Background()); !errors.Is(err, ErrScanInProgress) {
		t.Errorf("Expected ErrScanInProgress, got %v", err)
	}
	if got := skippedCycles(t); got != skipped+1 {
		t.Errorf("Expected %v skipped cycles, got %v", skipped+1, got)
	}

	// A background request during the cycle is skipped, not failed.
	sched.ScanNow(0)
	for skippedCycles(t) < skipped+2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := skippedCycles(t); got != skipped+2 {
		t.Errorf("Expected ScanNow during a cycle to be skipped, got %v skipped cycles", got)
	}

	close(release)
	<-done
	if sched.IsScanning() {
		t.Error("Expected scanning to end")
	}
	sched.Stop()
}

func TestSchedulerRearms(t *testing.T) {
	root := t.TempDir()

	var mu sync.Mutex
	cycles := 0
	s := New(Config{ImagePaths: []string{root}}, newTestAdmitter(newMemCatalog(), nil), nil)
	sched := NewScheduler(s, 30*time.Millisecond, Hooks{
		AfterCycle: func(context.Context, []Result) {
			mu.Lock()
			cycles++
			mu.Unlock()
		},
	})

	sched.Start()
	time.Sleep(200 * time.Millisecond)
	sched.Stop()

	mu.Lock()
	got := cycles
	mu.Unlock()
	if got < 2 {
		t.Errorf("Expected the cycle to re-arm, got %d cycles", got)
	}
	if !sched.NextScanAt().IsZero() {
		t.Error("Expected no pending cycle after Stop")
	}
}

func TestScanNowReplacesPendingTimer(t *testing.T) {
	s := New(Config{}, newTestAdmitter(newMemCatalog(), nil), nil)
	sched := NewScheduler(s, time.Hour, Hooks{})
	defer sched.Stop()

	sched.ScanNow(time.Hour)
	waitNext := func() time.Time {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if next := sched.NextScanAt(); !next.IsZero() {
				return next
			}
			time.Sleep(time.Millisecond)
		}
		t.Fatal("Expected a pending cycle")
		return time.Time{}
	}
	first := waitNext()

	sched.ScanNow(2 * time.Hour)
	deadline := time.Now().Add(5 * time.Second)
	var second time.Time
	for time.Now().Before(deadline) {
		second = sched.NextScanAt()
		if second.Sub(first) > 30*time.Minute {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if second.Sub(first) < 30*time.Minute {
		t.Errorf("Expected the pending cycle to be replaced, first=%v second=%v", first, second)
	}

	sched.mu.Lock()
	pending := 0
	if sched.timer != nil {
		pending = 1
	}
	sched.mu.Unlock()
	if pending != 1 {
		t.Errorf("Expected exactly one pending timer, got %d", pending)
	}
}

func TestScanRootsInOrder(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	touch(t, filepath.Join(a, "1.jpg"))
	touch(t, filepath.Join(b, "2.jpg"))

	catalog := newMemCatalog()
	s := New(Config{ImagePaths: []string{b, a}}, newTestAdmitter(catalog, nil), nil)
	if _, err := s.Scan(context.Background(), mediatypes.Image); err != nil {
		t.Fatal(err)
	}
	if len(catalog.order) != 2 || filepath.Base(catalog.order[0]) != "2.jpg" {
		t.Errorf("Expected roots in configuration order, got %v", catalog.order)
	}
}
