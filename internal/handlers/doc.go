// Package handlers serves the read-only HTTP surface of the ingest daemon.
//
// Routes:
//   - /livez, /readyz, /healthz for orchestrator probes
//   - /version for build information
//   - /api/status for the pipeline snapshot
//   - /metrics for Prometheus, when enabled
package handlers
