package pipeline

import (
	"context"
	"time"

	"media-ingest/internal/database"
	"media-ingest/internal/ingest"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/scanner"
)

// QueueStatus describes one library type.
type QueueStatus struct {
	Type            string            `json:"type"`
	Length          int               `json:"length"`
	Running         int               `json:"running"`
	Paused          bool              `json:"paused"`
	Current         string            `json:"current,omitempty"`
	InitialScanDone bool              `json:"initialScanDone"`
	Found           ingest.FoundCount `json:"found"`
	LastError       string            `json:"lastError,omitempty"`
}

// Status is a snapshot of the pipeline.
type Status struct {
	Ready        bool             `json:"ready"`
	StartTime    time.Time        `json:"startTime"`
	Uptime       string           `json:"uptime"`
	Scanning     bool             `json:"scanning"`
	NextScanAt   *time.Time       `json:"nextScanAt,omitempty"`
	LastScanAt   *time.Time       `json:"lastScanAt,omitempty"`
	LastResults  []scanner.Result `json:"lastResults,omitempty"`
	Queues       []QueueStatus    `json:"queues"`
	Catalog      *database.Counts `json:"catalog,omitempty"`
	SearchDocs   uint64           `json:"searchDocs"`
	MemoryPaused bool             `json:"memoryPaused"`
	Error        string           `json:"error,omitempty"`
}

// Status returns a snapshot of queues, scans and catalog sizes. A failed
// catalog read is reported in Error rather than failing the call.
func (c *Coordinator) Status(ctx context.Context) Status {
	c.mu.Lock()
	status := Status{
		StartTime:   c.startTime,
		LastResults: c.lastResults,
	}
	if !c.startTime.IsZero() {
		status.Uptime = time.Since(c.startTime).Round(time.Second).String()
	}
	if !c.lastCycle.IsZero() {
		last := c.lastCycle
		status.LastScanAt = &last
	}
	lastErrors := make(map[mediatypes.LibraryType]string, len(c.lastErrors))
	for t, msg := range c.lastErrors {
		lastErrors[t] = msg
	}
	c.mu.Unlock()

	status.Ready = c.Ready()
	status.Scanning = c.scheduler.IsScanning()
	if next := c.scheduler.NextScanAt(); !next.IsZero() {
		status.NextScanAt = &next
	}
	status.MemoryPaused = c.memory.IsPaused()

	for _, t := range mediatypes.Types {
		q := c.queue(t)
		status.Queues = append(status.Queues, QueueStatus{
			Type:            t.String(),
			Length:          q.Len(),
			Running:         q.Running(),
			Paused:          q.IsPaused(),
			Current:         q.Current(),
			InitialScanDone: c.readyFlag(t).Load(),
			Found:           c.counts.Get(t),
			LastError:       lastErrors[t],
		})
	}

	if status.LastScanAt == nil {
		if last, err := c.catalog.GetLastScanCompleted(ctx); err == nil && !last.IsZero() {
			status.LastScanAt = &last
		}
	}

	counts, err := c.catalog.Counts(ctx)
	if err != nil {
		status.Error = err.Error()
	} else {
		status.Catalog = &counts
	}
	if c.index != nil {
		if n, err := c.index.Count(); err == nil {
			status.SearchDocs = n
		}
	}

	return status
}
