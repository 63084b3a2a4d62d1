package ingest

import (
	"sync"

	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metrics"
)

// FoundCount is the number of paths admitted for one library type in the
// previous and the current scan run.
type FoundCount struct {
	Previous int `json:"previous"`
	Current  int `json:"current"`
}

// FoundCounts holds a FoundCount per library type.
type FoundCounts struct {
	mu     sync.Mutex
	counts map[mediatypes.LibraryType]FoundCount
}

// NewFoundCounts returns zeroed counts for every library type.
func NewFoundCounts() *FoundCounts {
	c := &FoundCounts{counts: make(map[mediatypes.LibraryType]FoundCount)}
	for _, t := range mediatypes.Types {
		c.counts[t] = FoundCount{}
	}
	return c
}

// Rotate moves the current count to previous and resets current. It runs
// at the start of every scan of t.
func (c *FoundCounts) Rotate(t mediatypes.LibraryType) {
	c.mu.Lock()
	fc := FoundCount{Previous: c.counts[t].Current}
	c.counts[t] = fc
	c.mu.Unlock()

	metrics.FoundCountPrevious.WithLabelValues(t.String()).Set(float64(fc.Previous))
	metrics.FoundCountCurrent.WithLabelValues(t.String()).Set(0)
}

// Increment records one admitted path.
func (c *FoundCounts) Increment(t mediatypes.LibraryType) {
	c.mu.Lock()
	fc := c.counts[t]
	fc.Current++
	c.counts[t] = fc
	c.mu.Unlock()

	metrics.FoundCountCurrent.WithLabelValues(t.String()).Set(float64(fc.Current))
}

// Get returns the counts for t.
func (c *FoundCounts) Get(t mediatypes.LibraryType) FoundCount {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[t]
}
