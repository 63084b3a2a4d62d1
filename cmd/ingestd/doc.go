// Command ingestd keeps a media catalog in step with video and image
// folders on disk.
//
// # Commands
//
//   - serve: watch the library roots, import new files, rescan on a timer
//     and serve /healthz, /readyz, /livez, /api/status and /metrics
//   - scan [--type video|image]: one reconciliation pass, then wait for the
//     import queues to drain and print a summary table
//   - recycle list|check|purge|reset: manage catalog entries whose files
//     disappeared
//   - probe <file>: show ffprobe streams and the transcode decision
//   - transcode <file>: run one video through the transcode gate
//   - search <query>: query the search index
//   - version: print build information
//
// # Lifecycle of serve
//
//  1. GOMEMLIMIT is derived from MEMORY_LIMIT when unset
//  2. Configuration is loaded from defaults, the TOML file and the environment
//  3. A file lock in the data directory keeps a second daemon out
//  4. The catalog (SQLite) and search index (bleve) are opened
//  5. One watcher, queue and importer per library type start, and the first
//     scan cycle runs
//  6. The status server listens on METRICS_PORT
//  7. SIGINT or SIGTERM stops the HTTP server, then the pipeline (in-flight
//     imports finish within 30s), then closes storage
//
// Build with CGO enabled for SQLite and libvips. FFmpeg and ffprobe must be
// on PATH for video imports.
package main
