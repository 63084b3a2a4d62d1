package metrics

import (
	"context"
	"time"

	"media-ingest/internal/logging"
)

// StatsProvider reports catalog sizes for the gauges refreshed by Collector.
type StatsProvider interface {
	CollectStats(ctx context.Context) (Stats, error)
}

// Stats holds the current catalog statistics
type Stats struct {
	Scenes          int
	Images          int
	Actors          int
	Labels          int
	Missing         int
	SearchDocuments uint64
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	doneChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the collection loop and waits for it to exit.
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.doneChan
}

func (c *Collector) collectLoop() {
	defer close(c.doneChan)

	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.interval)
	defer cancel()

	stats, err := c.statsProvider.CollectStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	CatalogEntities.WithLabelValues("scenes").Set(float64(stats.Scenes))
	CatalogEntities.WithLabelValues("images").Set(float64(stats.Images))
	CatalogEntities.WithLabelValues("actors").Set(float64(stats.Actors))
	CatalogEntities.WithLabelValues("labels").Set(float64(stats.Labels))
	CatalogEntities.WithLabelValues("missing").Set(float64(stats.Missing))
	MissingItems.Set(float64(stats.Missing))
	SearchIndexDocuments.Set(float64(stats.SearchDocuments))

	logging.Debug("Metrics collected: scenes=%d, images=%d, actors=%d, labels=%d, missing=%d",
		stats.Scenes, stats.Images, stats.Actors, stats.Labels, stats.Missing)
}
