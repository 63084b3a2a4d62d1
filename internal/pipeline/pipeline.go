package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"media-ingest/internal/database"
	"media-ingest/internal/importer"
	"media-ingest/internal/ingest"
	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/memory"
	"media-ingest/internal/queue"
	"media-ingest/internal/recycle"
	"media-ingest/internal/scanner"
	"media-ingest/internal/search"
	"media-ingest/internal/transcoder"
	"media-ingest/internal/watcher"
)

// ErrStarted is returned by Start on a running coordinator.
var ErrStarted = errors.New("pipeline already started")

// Config configures a Coordinator.
type Config struct {
	VideoPaths []string
	ImagePaths []string
	Excluder   *mediatypes.Excluder

	UsePolling   bool
	PollInterval time.Duration
	SettleDelay  time.Duration

	// ScanInterval re-arms the scan cycle; zero scans at startup only.
	ScanInterval time.Duration

	ReadImagesOnImport              bool
	ReadDimensionsBeforeInitialScan bool

	// CheckMissing runs the missing-file check after every scan cycle.
	CheckMissing bool
}

// Deps are the collaborators shared by the pipeline.
type Deps struct {
	Catalog    *database.Catalog
	Index      *search.Index
	Extractor  importer.Extractor
	Transcoder *transcoder.Gate
	// Previewer is nil when previews are disabled.
	Previewer importer.Previewer
	Memory    *memory.Monitor
}

// Coordinator owns one queue, importer and watcher per library type plus
// the admission path, the scan scheduler and the missing-file tracker.
type Coordinator struct {
	cfg     Config
	catalog *database.Catalog
	index   *search.Index
	memory  *memory.Monitor
	log     logging.Logger

	previews bool

	counts   *ingest.FoundCounts
	admitter *ingest.Admitter
	tracker  *recycle.Tracker

	videoQueue    *queue.ImportQueue
	imageQueue    *queue.ImportQueue
	videoImporter *importer.VideoImporter
	imageImporter *importer.ImageImporter

	scanner   *scanner.Scanner
	scheduler *scanner.Scheduler

	videoReady atomic.Bool
	imageReady atomic.Bool

	mu           sync.Mutex
	started      bool
	startTime    time.Time
	videoWatcher *watcher.Watcher
	imageWatcher *watcher.Watcher
	lastCycle    time.Time
	lastResults  []scanner.Result
	lastErrors   map[mediatypes.LibraryType]string

	ctx    context.Context
	cancel context.CancelFunc
}

// New wires the pipeline. Nothing runs until Start.
func New(cfg Config, deps Deps) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Coordinator{
		cfg:        cfg,
		catalog:    deps.Catalog,
		index:      deps.Index,
		memory:     deps.Memory,
		log:        logging.Component("pipeline"),
		previews:   deps.Previewer != nil,
		counts:     ingest.NewFoundCounts(),
		lastErrors: make(map[mediatypes.LibraryType]string),
		ctx:        ctx,
		cancel:     cancel,
	}

	c.videoImporter = importer.NewVideoImporter(importer.VideoConfig{
		Catalog:    deps.Catalog,
		Extractor:  deps.Extractor,
		Index:      deps.Index,
		Transcoder: deps.Transcoder,
		Previewer:  deps.Previewer,
		Memory:     deps.Memory,
		Reserve: func(path string) func() {
			return c.videoQueue.Reserve(path)
		},
	})
	c.imageImporter = importer.NewImageImporter(importer.ImageConfig{
		Catalog:               deps.Catalog,
		Extractor:             deps.Extractor,
		Index:                 deps.Index,
		Memory:                deps.Memory,
		ReadImages:            cfg.ReadImagesOnImport,
		ReadBeforeInitialScan: cfg.ReadDimensionsBeforeInitialScan,
		InitialScanDone:       c.imageReady.Load,
	})

	c.videoQueue = queue.New(mediatypes.Video, c.videoImporter.Import)
	c.imageQueue = queue.New(mediatypes.Image, c.imageImporter.Import)
	for _, t := range mediatypes.Types {
		c.queue(t).OnError(func(path string, err error) {
			c.mu.Lock()
			c.lastErrors[t] = fmt.Sprintf("%s: %v", path, err)
			c.mu.Unlock()
		})
	}

	c.admitter = ingest.NewAdmitter(cfg.Excluder, ingest.NewDedupGate(deps.Catalog), c.counts, c.videoQueue, c.imageQueue)
	c.tracker = recycle.New(deps.Catalog, deps.Index)

	var recoverer scanner.Recoverer
	if deps.Transcoder != nil {
		recoverer = deps.Transcoder
	}
	c.scanner = scanner.New(scanner.Config{
		VideoPaths: cfg.VideoPaths,
		ImagePaths: cfg.ImagePaths,
		Excluder:   cfg.Excluder,
	}, c.admitter, recoverer)
	c.scheduler = scanner.NewScheduler(c.scanner, cfg.ScanInterval, scanner.Hooks{
		AfterVideo: c.afterVideo,
		AfterCycle: c.afterCycle,
	})

	return c
}

func (c *Coordinator) queue(t mediatypes.LibraryType) *queue.ImportQueue {
	switch t {
	case mediatypes.Video:
		return c.videoQueue
	case mediatypes.Image:
		return c.imageQueue
	default:
		panic(fmt.Sprintf("pipeline: no queue for library type %v", t))
	}
}

func (c *Coordinator) roots(t mediatypes.LibraryType) []string {
	switch t {
	case mediatypes.Video:
		return c.cfg.VideoPaths
	case mediatypes.Image:
		return c.cfg.ImagePaths
	default:
		panic(fmt.Sprintf("pipeline: no roots for library type %v", t))
	}
}

func (c *Coordinator) readyFlag(t mediatypes.LibraryType) *atomic.Bool {
	switch t {
	case mediatypes.Video:
		return &c.videoReady
	case mediatypes.Image:
		return &c.imageReady
	default:
		panic(fmt.Sprintf("pipeline: no watcher for library type %v", t))
	}
}

// Start opens a watcher per library type and starts the scan scheduler.
// A watcher whose notification handle cannot be opened falls back to
// polling.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrStarted
	}
	c.startTime = time.Now()

	for _, t := range mediatypes.Types {
		w, err := c.startWatcher(t)
		if err != nil {
			c.stopWatchersLocked(context.Background())
			return fmt.Errorf("failed to start %s watcher: %w", t, err)
		}
		switch t {
		case mediatypes.Video:
			c.videoWatcher = w
		case mediatypes.Image:
			c.imageWatcher = w
		}
	}

	c.scheduler.Start()
	c.started = true
	c.log.Info("Started")
	return nil
}

func (c *Coordinator) startWatcher(t mediatypes.LibraryType) (*watcher.Watcher, error) {
	ready := c.readyFlag(t)
	cfg := watcher.Config{
		Type:         t,
		Roots:        c.roots(t),
		Excluder:     c.cfg.Excluder,
		UsePolling:   c.cfg.UsePolling,
		PollInterval: c.cfg.PollInterval,
		SettleDelay:  c.cfg.SettleDelay,
	}
	onAdded := func(path string) {
		if _, err := c.admitter.Admit(c.ctx, t, path, ingest.SourceWatcher); err != nil {
			c.log.Warn("Could not admit %s: %v", path, err)
		}
	}
	onReady := func() {
		ready.Store(true)
		c.log.Info("%s watcher ready", t)
	}

	w, err := watcher.New(cfg, onAdded, onReady)
	if err != nil && !cfg.UsePolling {
		c.log.Warn("Falling back to polling for %s: %v", t, err)
		cfg.UsePolling = true
		w, err = watcher.New(cfg, onAdded, onReady)
	}
	return w, err
}

func (c *Coordinator) stopWatchersLocked(ctx context.Context) error {
	var errs []error
	for _, w := range []*watcher.Watcher{c.videoWatcher, c.imageWatcher} {
		if w == nil {
			continue
		}
		if err := w.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.videoWatcher, c.imageWatcher = nil, nil
	return errors.Join(errs...)
}

// Stop halts scanning and watching, then closes the queues. The task in
// flight on each queue runs to completion unless ctx ends first.
func (c *Coordinator) Stop(ctx context.Context) error {
	c.scheduler.Stop()

	c.mu.Lock()
	watchErr := c.stopWatchersLocked(ctx)
	c.started = false
	c.mu.Unlock()

	var errs []error
	if watchErr != nil {
		errs = append(errs, watchErr)
	}
	for _, t := range mediatypes.Types {
		if err := c.queue(t).Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s queue: %w", t, err))
		}
	}
	c.cancel()

	c.log.Info("Stopped")
	return errors.Join(errs...)
}

// Pause stops dispatch on the queue for t.
func (c *Coordinator) Pause(t mediatypes.LibraryType) {
	c.queue(t).Pause()
}

// Resume restarts dispatch on the queue for t.
func (c *Coordinator) Resume(t mediatypes.LibraryType) {
	c.queue(t).Resume()
}

// OnDrain registers fn to run whenever the queue for t empties.
func (c *Coordinator) OnDrain(t mediatypes.LibraryType, fn func()) {
	c.queue(t).OnDrain(fn)
}

// OnError registers fn to run for every failed import of type t.
func (c *Coordinator) OnError(t mediatypes.LibraryType, fn func(path string, err error)) {
	c.queue(t).OnError(fn)
}

// Wait blocks until the queue for t is empty.
func (c *Coordinator) Wait(ctx context.Context, t mediatypes.LibraryType) error {
	return c.queue(t).Wait(ctx)
}

// ScanNow runs a scan cycle in the background. A positive nextDelay
// replaces the pending cycle with one nextDelay after this one.
func (c *Coordinator) ScanNow(nextDelay time.Duration) {
	c.scheduler.ScanNow(nextDelay)
}

// Cycle runs one scan cycle synchronously, without watchers. It is used by
// one-shot commands, which should then Wait on the queues.
func (c *Coordinator) Cycle(ctx context.Context) ([]scanner.Result, error) {
	return c.scheduler.Cycle(ctx)
}

// Scan scans the roots of a single library type synchronously.
func (c *Coordinator) Scan(ctx context.Context, t mediatypes.LibraryType) (scanner.Result, error) {
	return c.scanner.Scan(ctx, t)
}

// Tracker returns the missing-file tracker.
func (c *Coordinator) Tracker() *recycle.Tracker {
	return c.tracker
}

// Ready reports whether every watcher has finished its initial scan.
func (c *Coordinator) Ready() bool {
	for _, t := range mediatypes.Types {
		if !c.readyFlag(t).Load() {
			return false
		}
	}
	return true
}

// afterVideo generates previews for scenes lacking one once the video
// queue has drained.
func (c *Coordinator) afterVideo(ctx context.Context) {
	if !c.previews {
		return
	}
	if err := c.videoQueue.Wait(ctx); err != nil {
		return
	}
	if _, err := c.videoImporter.PreviewMissing(ctx); err != nil && !errors.Is(err, context.Canceled) {
		c.log.Error("Preview check failed: %v", err)
	}
}

func (c *Coordinator) afterCycle(ctx context.Context, results []scanner.Result) {
	now := time.Now()
	c.mu.Lock()
	c.lastCycle = now
	c.lastResults = results
	c.mu.Unlock()

	if err := c.catalog.SetLastScanCompleted(ctx, now); err != nil {
		c.log.Warn("Failed to record scan time: %v", err)
	}

	if c.cfg.CheckMissing {
		if _, err := c.tracker.CheckMissing(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Error("Missing-file check failed: %v", err)
		}
	}
}
