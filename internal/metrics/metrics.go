package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Queue metrics
var (
	QueueLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_ingest_queue_length",
			Help: "Pending plus in-flight tasks per import queue",
		},
		[]string{"type"},
	)

	QueueRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_ingest_queue_running",
			Help: "Tasks currently executing per import queue (0 or 1)",
		},
		[]string{"type"},
	)

	QueuePaused = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_ingest_queue_paused",
			Help: "Whether dispatch is paused for an import queue",
		},
		[]string{"type"},
	)

	QueueTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_queue_tasks_total",
			Help: "Tasks completed per import queue by status",
		},
		[]string{"type", "status"}, // "success", "error"
	)

	QueueTaskDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_queue_task_duration_seconds",
			Help:    "Time spent importing a single path",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"type"},
	)

	QueueDrainsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_queue_drains_total",
			Help: "Transitions of an import queue from non-empty to empty",
		},
		[]string{"type"},
	)
)

// Admission metrics
var (
	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_admissions_total",
			Help: "Candidate paths offered for import by source and result",
		},
		[]string{"type", "source", "result"}, // result: "admitted", "duplicate", "queued", "error"
	)

	FoundCountCurrent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_ingest_found_current",
			Help: "Paths admitted during the current scan run",
		},
		[]string{"type"},
	)

	FoundCountPrevious = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_ingest_found_previous",
			Help: "Paths admitted during the previous scan run",
		},
		[]string{"type"},
	)
)

// Import worker metrics
var (
	ImportStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_import_stage_duration_seconds",
			Help:    "Duration of each import stage",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		},
		[]string{"type", "stage"}, // "dedup", "extract", "read", "transcode", "probe", "preview", "persist", "index"
	)

	ImportErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_import_errors_total",
			Help: "Failed imports by the stage that failed",
		},
		[]string{"type", "stage"},
	)
)

// Transcode metrics
var (
	TranscodeDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_transcode_decisions_total",
			Help: "Probe decisions made by the transcode gate",
		},
		[]string{"decision"}, // "pass", "transcode"
	)

	TranscodeJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_transcode_jobs_total",
			Help: "Transcode jobs by outcome",
		},
		[]string{"status"}, // "success", "error", "timeout", "verify_failed"
	)

	TranscodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_ingest_transcode_duration_seconds",
			Help:    "Wall time of successful transcode jobs",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	TranscodeInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_transcode_in_progress",
			Help: "Transcoder subprocesses currently running",
		},
	)

	TranscodeRecoveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_transcode_recoveries_total",
			Help: "Renamed originals reconciled after an interrupted transcode",
		},
		[]string{"action"}, // "committed", "restored", "none"
	)
)

// Scan metrics
var (
	ScanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_scan_runs_total",
			Help: "Reconciliation scans by library type and status",
		},
		[]string{"type", "status"},
	)

	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_scan_duration_seconds",
			Help:    "Duration of a reconciliation scan",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
		[]string{"type"},
	)

	ScanFilesSeen = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_scan_files_seen_total",
			Help: "Files visited by reconciliation scans",
		},
		[]string{"type"},
	)

	ScanFoldersSeen = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_scan_folders_seen_total",
			Help: "Folders visited by reconciliation scans",
		},
		[]string{"type"},
	)

	ScanRootErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_scan_root_errors_total",
			Help: "Library roots skipped because they could not be read",
		},
		[]string{"type"},
	)

	ScanCyclesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_ingest_scan_cycles_skipped_total",
			Help: "Scan cycles not started because another cycle was running",
		},
	)

	ScanIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_scan_running",
			Help: "1 while a scan cycle is in progress",
		},
	)

	ScanLastCycleTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_scan_last_cycle_timestamp_seconds",
			Help: "Unix time the last scan cycle finished",
		},
	)

	ScanNextCycleTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_scan_next_cycle_timestamp_seconds",
			Help: "Unix time the next scan cycle is scheduled for",
		},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_watcher_events_total",
			Help: "Filesystem events received per library type",
		},
		[]string{"type", "event"},
	)

	WatcherErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_watcher_errors_total",
			Help: "Errors reported by the filesystem watcher",
		},
		[]string{"type"},
	)

	WatchedDirectories = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_ingest_watched_directories",
			Help: "Directories registered with the filesystem watcher",
		},
		[]string{"type"},
	)

	WatcherReady = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_ingest_watcher_initial_scan_complete",
			Help: "1 once a watcher has finished its initial scan",
		},
		[]string{"type"},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_db_queries_total",
			Help: "Total number of catalog queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_db_query_duration_seconds",
			Help:    "Catalog query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_db_transaction_duration_seconds",
			Help:    "Catalog transaction duration by outcome",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"outcome"}, // "commit", "rollback"
	)

	CatalogEntities = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_ingest_catalog_entities",
			Help: "Entities stored per catalog collection",
		},
		[]string{"collection"},
	)
)

// Search index metrics
var (
	SearchIndexOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_search_index_operations_total",
			Help: "Search index operations by kind and status",
		},
		[]string{"operation", "status"}, // operation: "index", "remove", "search"
	)

	SearchIndexDocuments = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_search_index_documents",
			Help: "Documents held by the search index",
		},
	)
)

// Missing/recycle metrics
var (
	MissingItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_missing_items",
			Help: "Catalog entities currently tracked as missing",
		},
	)

	MissingChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_missing_checks_total",
			Help: "Missing-file checks by status",
		},
		[]string{"status"},
	)

	MissingPurgedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_ingest_missing_purged_total",
			Help: "Entities removed from the catalog by purge",
		},
	)
)

// Preview metrics
var (
	PreviewGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_preview_generations_total",
			Help: "Scene preview generations by status",
		},
		[]string{"status"},
	)

	PreviewGenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_ingest_preview_generation_duration_seconds",
			Help:    "Scene preview generation duration",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration by volume",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_filesystem_operation_errors_total",
			Help: "Failed filesystem operations by volume",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_filesystem_retry_attempts_total",
			Help: "Retries after stale NFS file handles",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_filesystem_retry_duration_seconds",
			Help:    "Total time spent in an operation including retries",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)
)

// HTTP metrics
var (
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_http_requests_in_flight",
			Help: "Requests currently being served by the status server",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_http_requests_total",
			Help: "Requests served by the status server",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_http_request_duration_seconds",
			Help:    "Status server request latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"method", "route"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_memory_paused",
			Help: "1 while imports are held back by memory pressure",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_ingest_memory_gc_pauses_total",
			Help: "Times memory pressure forced a pause and GC",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_ingest_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
