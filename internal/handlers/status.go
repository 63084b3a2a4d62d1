package handlers

import (
	"net/http"
)

// GetStatus returns the full pipeline snapshot.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.pipeline.Status(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, status)
}
