package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metrics"
)

// Handler imports one path. A returned error is reported to the error
// listeners and the queue moves on to the next task.
type Handler func(ctx context.Context, path string) error

// ImportQueue is a FIFO of paths consumed by a single dispatcher goroutine,
// so at most one task runs at a time.
type ImportQueue struct {
	libType mediatypes.LibraryType
	label   string
	handler Handler
	log     logging.Logger

	mu       sync.Mutex
	pending  []string
	members  map[string]struct{}
	reserved map[string]struct{}
	inFlight string
	running  bool
	paused   bool
	closed   bool
	idle     chan struct{}

	drainListeners []func()
	errorListeners []func(path string, err error)

	// ctx is passed to handlers. It is only canceled when Close gives up
	// waiting for the in-flight task.
	ctx    context.Context
	cancel context.CancelFunc

	wake      chan struct{}
	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once
}

// New creates a queue for t and starts its dispatcher.
func New(t mediatypes.LibraryType, handler Handler) *ImportQueue {
	ctx, cancel := context.WithCancel(context.Background())

	idle := make(chan struct{})
	close(idle)

	q := &ImportQueue{
		libType:  t,
		label:    t.String(),
		handler:  handler,
		log:      logging.Component(t.String() + "Queue"),
		members:  make(map[string]struct{}),
		reserved: make(map[string]struct{}),
		idle:     idle,
		ctx:      ctx,
		cancel:   cancel,
		wake:     make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}

	metrics.QueueLength.WithLabelValues(q.label).Set(0)
	metrics.QueueRunning.WithLabelValues(q.label).Set(0)
	metrics.QueuePaused.WithLabelValues(q.label).Set(0)

	go q.dispatch()
	return q
}

// Type returns the library type served by the queue.
func (q *ImportQueue) Type() mediatypes.LibraryType {
	return q.libType
}

// Push appends path. It returns false when path is already pending, in
// flight or reserved, or the queue is closed.
func (q *ImportQueue) Push(path string) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	if _, ok := q.members[path]; ok {
		q.mu.Unlock()
		return false
	}
	if _, ok := q.reserved[path]; ok {
		q.mu.Unlock()
		return false
	}

	if len(q.members) == 0 {
		q.idle = make(chan struct{})
	}
	q.members[path] = struct{}{}
	q.pending = append(q.pending, path)
	metrics.QueueLength.WithLabelValues(q.label).Set(float64(len(q.members)))
	q.mu.Unlock()

	q.signal()
	return true
}

// Reserve makes Push refuse path until release is called, without queueing
// it. Reservations do not count towards Len. Reserving a path that is
// already pending, in flight or reserved is a no-op.
func (q *ImportQueue) Reserve(path string) (release func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.members[path]; ok {
		return func() {}
	}
	if _, ok := q.reserved[path]; ok {
		return func() {}
	}
	q.reserved[path] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			delete(q.reserved, path)
			q.mu.Unlock()
		})
	}
}

func (q *ImportQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pause stops dispatch of new tasks. Pending tasks are kept and the
// in-flight task runs to completion.
func (q *ImportQueue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.paused {
		q.paused = true
		metrics.QueuePaused.WithLabelValues(q.label).Set(1)
		q.log.Info("Paused with %d pending", len(q.pending))
	}
}

// Resume restarts dispatch of the pending backlog.
func (q *ImportQueue) Resume() {
	q.mu.Lock()
	was := q.paused
	q.paused = false
	metrics.QueuePaused.WithLabelValues(q.label).Set(0)
	q.mu.Unlock()

	if was {
		q.log.Info("Resumed")
	}
	q.signal()
}

// IsPaused reports whether dispatch is paused.
func (q *ImportQueue) IsPaused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

// Len returns the number of pending plus in-flight tasks.
func (q *ImportQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.members)
}

// Running returns the number of tasks executing, 0 or 1.
func (q *ImportQueue) Running() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return 1
	}
	return 0
}

// IsRunning reports whether a task is executing.
func (q *ImportQueue) IsRunning() bool {
	return q.Running() == 1
}

// Current returns the in-flight path, or "".
func (q *ImportQueue) Current() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inFlight
}

// OnDrain registers fn to run each time the queue goes from non-empty to
// empty. Listeners run on the dispatcher goroutine in registration order.
func (q *ImportQueue) OnDrain(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drainListeners = append(q.drainListeners, fn)
}

// OnError registers fn to run once for every failed task.
func (q *ImportQueue) OnError(fn func(path string, err error)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.errorListeners = append(q.errorListeners, fn)
}

// Wait blocks until the queue is empty or ctx is done. A paused queue with
// pending tasks never becomes empty.
func (q *ImportQueue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops dispatch and waits for the in-flight task. Pending tasks are
// dropped. If ctx ends first the in-flight task's context is canceled and
// ctx.Err() is returned.
func (q *ImportQueue) Close(ctx context.Context) error {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		dropped := len(q.pending)
		q.mu.Unlock()

		if dropped > 0 {
			q.log.Info("Closing with %d pending tasks", dropped)
		}
		close(q.stopChan)
	})

	select {
	case <-q.doneChan:
		q.cancel()
		q.mu.Lock()
		if len(q.members) > 0 {
			q.members = make(map[string]struct{})
			q.pending = nil
			close(q.idle)
		}
		q.mu.Unlock()
		metrics.QueueLength.WithLabelValues(q.label).Set(0)
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

func (q *ImportQueue) dispatch() {
	defer close(q.doneChan)

	for {
		select {
		case <-q.stopChan:
			return
		case <-q.wake:
		}

		for {
			select {
			case <-q.stopChan:
				return
			default:
			}

			path, ok := q.next()
			if !ok {
				break
			}
			q.execute(path)
		}
	}
}

// next pops the head of the queue and marks it in flight.
func (q *ImportQueue) next() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || q.paused || len(q.pending) == 0 {
		return "", false
	}

	path := q.pending[0]
	q.pending[0] = ""
	q.pending = q.pending[1:]
	q.inFlight = path
	q.running = true
	metrics.QueueRunning.WithLabelValues(q.label).Set(1)
	return path, true
}

func (q *ImportQueue) execute(path string) {
	start := time.Now()
	err := q.run(path)
	elapsed := time.Since(start)

	q.mu.Lock()
	delete(q.members, path)
	q.inFlight = ""
	q.running = false
	drained := len(q.members) == 0
	if drained {
		close(q.idle)
	}
	errorListeners := append([]func(string, error){}, q.errorListeners...)
	drainListeners := append([]func(){}, q.drainListeners...)
	remaining := len(q.members)
	q.mu.Unlock()

	metrics.QueueRunning.WithLabelValues(q.label).Set(0)
	metrics.QueueLength.WithLabelValues(q.label).Set(float64(remaining))
	metrics.QueueTaskDuration.WithLabelValues(q.label).Observe(elapsed.Seconds())

	if err != nil {
		metrics.QueueTasksTotal.WithLabelValues(q.label, "error").Inc()
		q.log.Error("Failed to import %s: %v", path, err)
		for _, fn := range errorListeners {
			fn(path, err)
		}
	} else {
		metrics.QueueTasksTotal.WithLabelValues(q.label, "success").Inc()
		q.log.Debug("Imported %s in %v", path, elapsed)
	}

	if drained {
		metrics.QueueDrainsTotal.WithLabelValues(q.label).Inc()
		q.log.Debug("Queue drained")
		for _, fn := range drainListeners {
			fn()
		}
	}
}

// run calls the handler, turning a panic into an error.
func (q *ImportQueue) run(path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("Panic importing %s: %v\n%s", path, r, debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return q.handler(q.ctx, path)
}
