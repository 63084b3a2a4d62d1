package scanner

import (
	"context"
	"errors"
	"sync"
	"time"

	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metrics"
)

// ErrScanInProgress is returned by Cycle when another cycle is running.
var ErrScanInProgress = errors.New("scan already in progress")

// Hooks are called by the Scheduler around each cycle.
type Hooks struct {
	// AfterVideo runs in its own goroutine once the video scan finished,
	// while the image scan continues.
	AfterVideo func(ctx context.Context)
	// AfterCycle runs on the cycle goroutine when a cycle completes.
	AfterCycle func(ctx context.Context, results []Result)
}

// Scheduler runs scan cycles: videos, then images. Cycles never overlap,
// and at most one future cycle is pending at any time.
type Scheduler struct {
	scanner  *Scanner
	interval time.Duration
	hooks    Hooks
	log      logging.Logger

	cycleMu sync.Mutex

	mu       sync.Mutex
	timer    *time.Timer
	nextAt   time.Time
	scanning bool
	stopped  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler returns a scheduler that re-arms interval after each
// scheduled cycle. A zero interval runs cycles only on demand.
func NewScheduler(scanner *Scanner, interval time.Duration, hooks Hooks) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scanner:  scanner,
		interval: interval,
		hooks:    hooks,
		log:      logging.Component("scheduler"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs a cycle now and then every interval after the previous cycle
// finished.
func (s *Scheduler) Start() {
	s.ScanNow(s.interval)
}

// ScanNow runs a cycle in the background. When nextDelay is positive any
// pending cycle is canceled and the next one is scheduled nextDelay after
// this one finishes; otherwise a pending cycle is left alone.
func (s *Scheduler) ScanNow(nextDelay time.Duration) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if nextDelay > 0 {
		s.clearTimerLocked()
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		_, err := s.Cycle(s.ctx)
		switch {
		case err == nil, errors.Is(err, context.Canceled), errors.Is(err, ErrScanInProgress):
		default:
			s.log.Error("Scan failed: %v", err)
		}
		if nextDelay > 0 {
			s.schedule(nextDelay)
		}
	}()
}

func (s *Scheduler) clearTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
		s.nextAt = time.Time{}
		metrics.ScanNextCycleTimestamp.Set(0)
	}
}

func (s *Scheduler) schedule(delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.clearTimerLocked()

	s.nextAt = time.Now().Add(delay)
	metrics.ScanNextCycleTimestamp.Set(float64(s.nextAt.Unix()))
	s.log.Info("Next scan at %s", s.nextAt.Format(time.RFC1123))

	s.timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		s.timer = nil
		s.nextAt = time.Time{}
		s.mu.Unlock()
		s.ScanNow(s.interval)
	})
}

// Cycle scans every library type once and returns per-type results. It
// fails with ErrScanInProgress instead of waiting for a running cycle.
func (s *Scheduler) Cycle(ctx context.Context) ([]Result, error) {
	if !s.cycleMu.TryLock() {
		metrics.ScanCyclesSkipped.Inc()
		s.log.Info("Skipping scan: another scan is running")
		return nil, ErrScanInProgress
	}
	defer s.cycleMu.Unlock()

	s.setScanning(true)
	defer s.setScanning(false)

	s.log.Info("Scanning folders...")
	results := make([]Result, 0, len(mediatypes.Types))

	for _, t := range mediatypes.Types {
		res, err := s.scanner.Scan(ctx, t)
		results = append(results, res)
		if err != nil {
			return results, err
		}

		if t == mediatypes.Video {
			s.log.Info("Video scan done")
			if s.hooks.AfterVideo != nil {
				s.wg.Add(1)
				go func() {
					defer s.wg.Done()
					s.hooks.AfterVideo(ctx)
				}()
			}
		}
	}

	metrics.ScanLastCycleTimestamp.Set(float64(time.Now().Unix()))
	if s.hooks.AfterCycle != nil {
		s.hooks.AfterCycle(ctx, results)
	}
	return results, nil
}

func (s *Scheduler) setScanning(v bool) {
	s.mu.Lock()
	s.scanning = v
	s.mu.Unlock()
	if v {
		metrics.ScanIsRunning.Set(1)
	} else {
		metrics.ScanIsRunning.Set(0)
	}
}

// IsScanning reports whether a cycle is running.
func (s *Scheduler) IsScanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

// NextScanAt returns when the pending cycle fires, or the zero time.
func (s *Scheduler) NextScanAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextAt
}

// Stop cancels the pending cycle and any running scan, then waits for
// background work, including AfterVideo hooks, to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.clearTimerLocked()
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}
