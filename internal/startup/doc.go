// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [Load] starts from [Defaults], applies an optional TOML file and then
// environment variables, so the environment always wins. [LoadConfig] does
// the same with the file named by CONFIG_FILE after printing the banner.
//
// Environment variables:
//
//   - VIDEO_PATHS, IMAGE_PATHS: comma separated library roots
//   - EXCLUDE_FILES: comma separated glob patterns never imported
//   - WATCH_USE_POLLING: poll instead of using OS notifications (default: false)
//   - WATCH_POLLING_INTERVAL: poll interval (default: 10s)
//   - WATCH_SETTLE_DELAY: quiet period before a new file is imported (default: 2s)
//   - READ_IMAGES_ON_IMPORT: read image dimensions and hash (default: true)
//   - READ_IMAGE_DIMENSIONS_BEFORE_INITIAL_SCAN: also read them during the
//     initial scan (default: false)
//   - GENERATE_PREVIEWS: generate scene previews (default: false)
//   - SCAN_INTERVAL: delay between reconciliation scans, 0 disables (default: 2h)
//   - CHECK_MISSING: look for deleted files after every scan (default: true)
//   - TRANSCODE_TIMEOUT: limit for a single transcode (default: 2h)
//   - TRANSCODE_ARGS: space separated ffmpeg output arguments
//   - DATA_DIR: catalog, search index and previews (default: /data)
//   - METRICS_PORT: status and metrics server port (default: 9090)
//   - METRICS_ENABLED: expose /metrics (default: true)
//   - LOG_HEALTH_CHECKS: log probe requests (default: false)
//   - MEMORY_LIMIT: soft memory limit such as "2GiB" for import backpressure
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//
// The TOML file uses the sections library, watch, import, scan, transcode,
// server and logging:
//
//	[library]
//	video_paths = ["/media/videos"]
//	image_paths = ["/media/images"]
//	exclude = ["*.part", "@eaDir"]
//
//	[scan]
//	interval = "1h"
//
// Unknown keys are rejected.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
package startup
