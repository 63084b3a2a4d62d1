package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-ingest/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status     string `json:"status"`
	Ready      bool   `json:"ready"`
	Version    string `json:"version"`
	Uptime     string `json:"uptime"`
	Scanning   bool   `json:"scanning"`
	LastScanAt string `json:"lastScanAt,omitempty"`
	Error      string `json:"error,omitempty"`

	// Queue summary
	Pending      int  `json:"pending"`
	MemoryPaused bool `json:"memoryPaused"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Catalog summary
	Scenes int `json:"scenes,omitempty"`
	Images int `json:"images,omitempty"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := h.pipeline.Status(r.Context())

	response := HealthResponse{
		Ready:        status.Ready,
		Version:      startup.Version,
		Uptime:       status.Uptime,
		Scanning:     status.Scanning,
		MemoryPaused: status.MemoryPaused,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	for _, q := range status.Queues {
		response.Pending += q.Length
	}

	if status.Ready {
		response.Status = statusHealthy
	} else {
		response.Status = statusStarting
	}

	if status.LastScanAt != nil {
		response.LastScanAt = status.LastScanAt.Format(time.RFC3339)
	}

	if status.Error != "" {
		response.Error = status.Error
		response.Status = statusDegraded
	}

	if status.Catalog != nil {
		response.Scenes = status.Catalog.Scenes
		response.Images = status.Catalog.Images
	}

	w.Header().Set("Content-Type", "application/json")
	if !status.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 once both watchers finished their initial scan.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.pipeline.Ready() {
		writeJSONStatus(w, http.StatusOK, "ready")
	} else {
		writeJSONStatus(w, http.StatusServiceUnavailable, "not_ready")
	}
}
