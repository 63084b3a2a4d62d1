package metrics

// Label values shared with the packages that record them.
var (
	libraryTypes = []string{"video", "image"}
	sources      = []string{"watcher", "scanner"}
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, t := range libraryTypes {
		QueueLength.WithLabelValues(t)
		QueueRunning.WithLabelValues(t)
		QueuePaused.WithLabelValues(t)
		QueueTaskDuration.WithLabelValues(t)
		QueueDrainsTotal.WithLabelValues(t)
		for _, status := range []string{"success", "error"} {
			QueueTasksTotal.WithLabelValues(t, status)
		}

		for _, src := range sources {
			for _, result := range []string{"admitted", "duplicate", "queued", "error"} {
				AdmissionsTotal.WithLabelValues(t, src, result)
			}
		}
		FoundCountCurrent.WithLabelValues(t)
		FoundCountPrevious.WithLabelValues(t)

		for _, stage := range []string{"dedup", "extract", "read", "transcode", "probe", "preview", "persist", "index"} {
			ImportStageDuration.WithLabelValues(t, stage)
			ImportErrorsTotal.WithLabelValues(t, stage)
		}

		for _, status := range []string{"success", "error"} {
			ScanRunsTotal.WithLabelValues(t, status)
		}
		ScanDuration.WithLabelValues(t)
		ScanFilesSeen.WithLabelValues(t)
		ScanFoldersSeen.WithLabelValues(t)
		ScanRootErrors.WithLabelValues(t)

		for _, ev := range []string{"create", "write", "rename", "remove", "poll"} {
			WatcherEventsTotal.WithLabelValues(t, ev)
		}
		WatcherErrors.WithLabelValues(t)
		WatchedDirectories.WithLabelValues(t)
		WatcherReady.WithLabelValues(t)
	}

	for _, d := range []string{"pass", "transcode"} {
		TranscodeDecisionsTotal.WithLabelValues(d)
	}
	for _, s := range []string{"success", "error", "timeout", "verify_failed"} {
		TranscodeJobsTotal.WithLabelValues(s)
	}
	for _, a := range []string{"committed", "restored", "none"} {
		TranscodeRecoveriesTotal.WithLabelValues(a)
	}

	for _, c := range []string{"scenes", "images", "actors", "labels", "missing"} {
		CatalogEntities.WithLabelValues(c)
	}

	for _, op := range []string{"get", "get_by_path", "get_bulk", "upsert", "remove", "get_all", "query", "count",
		"initialize_schema", "get_metadata", "set_metadata"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
	for _, o := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(o)
	}

	for _, op := range []string{"index", "remove", "search"} {
		SearchIndexOpsTotal.WithLabelValues(op, "success")
		SearchIndexOpsTotal.WithLabelValues(op, "error")
	}

	for _, s := range []string{"present", "missing", "error"} {
		MissingChecksTotal.WithLabelValues(s)
	}
	for _, s := range []string{"success", "error", "skipped"} {
		PreviewGenerationsTotal.WithLabelValues(s)
	}

	volumes := []string{"video", "image", "data", "unknown"}
	for _, vol := range volumes {
		for _, op := range []string{"stat", "open", "readdir"} {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
