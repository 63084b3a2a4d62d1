// Package metrics provides Prometheus instrumentation for the ingest daemon.
//
// All metrics are registered with promauto at package init and prefixed with
// "media_ingest_". Call InitializeMetrics once at startup so every labelled
// series is exported from the first scrape.
//
// # Metric Categories
//
//   - Queue: length, running and paused gauges per library type, task
//     outcomes and durations, drain transitions
//   - Admission: candidate paths by source (watcher, scanner) and result,
//     plus the current and previous FoundCount per type
//   - Import: per-stage durations and failures
//   - Transcode: gate decisions, job outcomes, durations, recoveries of
//     interrupted runs
//   - Scan: runs, durations, files and folders visited, skipped roots, the
//     last and next cycle timestamps
//   - Watcher: events, errors, watched directories, initial scan completion
//   - Database: catalog query counts and latencies, transactions, entity counts
//   - Search, missing items, previews, filesystem retries and memory pressure
//
// # Collector
//
// Collector refreshes the catalog gauges on an interval from a
// StatsProvider, normally the pipeline coordinator.
//
// # Filesystem observer
//
// NewFilesystemObserver adapts these metrics to filesystem.Observer so the
// filesystem package can record retries without importing this package.
package metrics
