package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"media-ingest/internal/filesystem"
	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metrics"
)

// DefaultSettleDelay is how long a new file must go without writes before
// it is reported.
const DefaultSettleDelay = 2 * time.Second

// Config configures a Watcher.
type Config struct {
	// Type selects which classified files are reported.
	Type     mediatypes.LibraryType
	Roots    []string
	Excluder *mediatypes.Excluder

	// UsePolling replaces OS notifications with a directory walk every
	// PollInterval, for network filesystems.
	UsePolling   bool
	PollInterval time.Duration

	// SettleDelay applies to notification mode. Zero reports files as soon
	// as they are created.
	SettleDelay time.Duration
}

// Watcher reports files of one library type under a set of roots: first
// every existing file, then files added while it runs.
type Watcher struct {
	cfg   Config
	label string
	retry filesystem.RetryConfig
	log   logging.Logger

	onPathAdded           func(path string)
	onInitialScanComplete func()

	fsw *fsnotify.Watcher

	mu       sync.Mutex
	ready    bool
	watched  int
	settling map[string]*time.Timer

	// polling state: last observed state of every file, and files already
	// reported
	previous map[string]fileState
	reported map[string]bool

	settled  chan string
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
}

type fileState struct {
	size    int64
	modTime time.Time
}

func (s fileState) equal(o fileState) bool {
	return s.size == o.size && s.modTime.Equal(o.modTime)
}

// New starts watching. It fails only when the OS watch handle cannot be
// created; unreadable roots are logged and skipped. The initial scan runs
// in the background: onPathAdded is called for every existing file, then
// onInitialScanComplete once, then onPathAdded for every new file. All
// callbacks run on one goroutine.
func New(cfg Config, onPathAdded func(path string), onInitialScanComplete func()) (*Watcher, error) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}

	w := &Watcher{
		cfg:                   cfg,
		label:                 cfg.Type.String(),
		retry:                 filesystem.DefaultRetryConfig(),
		log:                   logging.Component(cfg.Type.String() + "Watcher"),
		onPathAdded:           onPathAdded,
		onInitialScanComplete: onInitialScanComplete,
		settling:              make(map[string]*time.Timer),
		previous:              make(map[string]fileState),
		reported:              make(map[string]bool),
		settled:               make(chan string, 64),
		stopChan:              make(chan struct{}),
		doneChan:              make(chan struct{}),
	}

	if !cfg.UsePolling {
		fsw, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		w.fsw = fsw
	}

	metrics.WatcherReady.WithLabelValues(w.label).Set(0)
	go w.run()
	return w, nil
}

// Ready reports whether the initial scan has completed.
func (w *Watcher) Ready() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ready
}

// Stop releases the OS watch handle and returns once the event loop has
// exited. No callback runs after Stop returns.
func (w *Watcher) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		if w.fsw != nil {
			if err := w.fsw.Close(); err != nil {
				w.log.Warn("Failed to close watch handle: %v", err)
			}
		}
	})

	select {
	case <-w.doneChan:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mu.Lock()
	for path, timer := range w.settling {
		timer.Stop()
		delete(w.settling, path)
	}
	w.mu.Unlock()
	metrics.WatcherReady.WithLabelValues(w.label).Set(0)
	return nil
}

func (w *Watcher) stopped() bool {
	select {
	case <-w.stopChan:
		return true
	default:
		return false
	}
}

func (w *Watcher) run() {
	defer close(w.doneChan)

	start := time.Now()
	found := 0
	for _, root := range w.cfg.Roots {
		if w.stopped() {
			return
		}
		w.walk(root, true, func(path string, st fileState) {
			w.previous[path] = st
			w.reported[path] = true
			found++
			w.onPathAdded(path)
		})
	}
	if w.stopped() {
		return
	}

	w.mu.Lock()
	w.ready = true
	w.mu.Unlock()
	metrics.WatcherReady.WithLabelValues(w.label).Set(1)
	w.log.Info("Initial scan complete: %d files in %v", found, time.Since(start).Round(time.Millisecond))

	if w.onInitialScanComplete != nil {
		w.onInitialScanComplete()
	}

	if w.cfg.UsePolling {
		w.pollLoop()
	} else {
		w.eventLoop()
	}
}

// walk enumerates matching files under root depth first, registering
// directories with the OS watcher in notification mode. It stops early
// when the watcher is stopped.
func (w *Watcher) walk(root string, isRoot bool, emit func(path string, st fileState)) {
	err := filesystem.WalkDir(root, w.retry, func(path string, d fs.DirEntry, err error) error {
		if w.stopped() {
			return fs.SkipAll
		}
		if err != nil {
			if path == root && isRoot {
				return err
			}
			w.log.Warn("Skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && (mediatypes.IsHidden(path) || w.cfg.Excluder.Match(path)) {
				return fs.SkipDir
			}
			w.addWatch(path)
			return nil
		}

		if !d.Type().IsRegular() || mediatypes.Classify(path, w.cfg.Excluder) != w.cfg.Type {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		emit(path, fileState{size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	if err != nil && !errors.Is(err, fs.SkipAll) {
		w.log.Error("Cannot read root %s: %v", root, err)
		metrics.WatcherErrors.WithLabelValues(w.label).Inc()
	}
}

func (w *Watcher) addWatch(dir string) {
	if w.fsw == nil {
		return
	}
	if err := w.fsw.Add(dir); err != nil {
		w.log.Warn("Cannot watch %s: %v", dir, err)
		metrics.WatcherErrors.WithLabelValues(w.label).Inc()
		return
	}
	w.mu.Lock()
	w.watched++
	metrics.WatchedDirectories.WithLabelValues(w.label).Set(float64(w.watched))
	w.mu.Unlock()
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case path := <-w.settled:
			w.emitSettled(path)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Error("Watch error: %v", err)
			metrics.WatcherErrors.WithLabelValues(w.label).Inc()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	switch {
	case event.Has(fsnotify.Create):
		metrics.WatcherEventsTotal.WithLabelValues(w.label, "create").Inc()
		info, err := os.Lstat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if mediatypes.IsHidden(path) || w.cfg.Excluder.Match(path) {
				return
			}
			// Files may already exist in a directory moved into place.
			w.walk(path, false, func(p string, _ fileState) { w.settle(p) })
			return
		}
		if info.Mode().IsRegular() && mediatypes.Classify(path, w.cfg.Excluder) == w.cfg.Type {
			w.settle(path)
		}

	case event.Has(fsnotify.Write):
		metrics.WatcherEventsTotal.WithLabelValues(w.label, "write").Inc()
		w.mu.Lock()
		if timer, ok := w.settling[path]; ok {
			timer.Reset(w.cfg.SettleDelay)
		}
		w.mu.Unlock()

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		op := "remove"
		if event.Has(fsnotify.Rename) {
			op = "rename"
		}
		metrics.WatcherEventsTotal.WithLabelValues(w.label, op).Inc()
		w.mu.Lock()
		if timer, ok := w.settling[path]; ok {
			timer.Stop()
			delete(w.settling, path)
		}
		w.mu.Unlock()
	}
}

// settle reports path once it has gone SettleDelay without writes.
func (w *Watcher) settle(path string) {
	if w.cfg.SettleDelay <= 0 {
		w.emit(path)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.settling[path]; ok {
		timer.Reset(w.cfg.SettleDelay)
		return
	}
	w.settling[path] = time.AfterFunc(w.cfg.SettleDelay, func() {
		select {
		case w.settled <- path:
		case <-w.stopChan:
		}
	})
}

func (w *Watcher) emitSettled(path string) {
	w.mu.Lock()
	_, pending := w.settling[path]
	delete(w.settling, path)
	w.mu.Unlock()

	if !pending {
		return
	}
	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		return
	}
	w.emit(path)
}

func (w *Watcher) emit(path string) {
	if w.stopped() {
		return
	}
	w.log.Debug("File added: %s", path)
	w.onPathAdded(path)
}

// pollLoop diffs a full walk against the previous one every interval. A
// new file is reported once its size and modification time are unchanged
// between two polls.
func (w *Watcher) pollLoop() {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	metrics.WatcherEventsTotal.WithLabelValues(w.label, "poll").Inc()

	current := make(map[string]fileState, len(w.previous))
	var ready []string
	for _, root := range w.cfg.Roots {
		w.walk(root, true, func(path string, st fileState) {
			current[path] = st
			if w.reported[path] {
				return
			}
			if prev, ok := w.previous[path]; ok && prev.equal(st) {
				ready = append(ready, path)
			}
		})
		if w.stopped() {
			return
		}
	}

	for path := range w.reported {
		if _, ok := current[path]; !ok {
			delete(w.reported, path)
		}
	}
	w.previous = current

	for _, path := range ready {
		w.reported[path] = true
		w.emit(path)
	}
}
