package api

import (
	"net/http"

	"github.com/civicdesk/civicdesk/internal/log"
	"github.com/civicdesk/civicdesk/internal/vecstore"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	index  vecstore.Index
	logger log.Logger
}

// NewHealthHandler creates a new health handler. The index is used for
// readiness checks.
func NewHealthHandler(index vecstore.Index, logger log.Logger) *HealthHandler {
	return &HealthHandler{index: index, logger: logger}
}

// RegisterRoutes registers health routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.liveness)
	mux.HandleFunc("GET /ready", h.readiness)
}

// liveness returns 200 OK if the process is alive.
func (h *HealthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readiness returns 200 OK if the vector store answers. For the in-memory
// backend this always succeeds, which is correct: the portal is serving.
func (h *HealthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		http.Error(w, "vector store not configured", http.StatusServiceUnavailable)
		return
	}
	if _, err := h.index.Stats(r.Context()); err != nil {
		h.logger.Error("readiness check failed", "error", err)
		http.Error(w, "vector store not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
