package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"media-ingest/internal/pipeline"
)

// StatusProvider reports pipeline state. *pipeline.Coordinator implements it.
type StatusProvider interface {
	Ready() bool
	Status(ctx context.Context) pipeline.Status
}

type Handlers struct {
	pipeline StatusProvider
}

func New(p StatusProvider) *Handlers {
	return &Handlers{pipeline: p}
}

// Router registers the health, status and optionally metrics routes.
func (h *Handlers) Router(metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", h.GetStatus).Methods(http.MethodGet)

	if metricsEnabled {
		r.Handle("/metrics", h.MetricsHandler()).Methods(http.MethodGet)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, "not found", http.StatusNotFound)
	})

	return r
}
