package api

import (
	"net/http"
	"strconv"

	"github.com/civicdesk/civicdesk/internal/log"
	"github.com/civicdesk/civicdesk/internal/search"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 50
)

// SearchHandler handles the read-side endpoints.
type SearchHandler struct {
	facade *search.Facade
	logger log.Logger
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(facade *search.Facade, logger log.Logger) *SearchHandler {
	return &SearchHandler{facade: facade, logger: logger}
}

// RegisterRoutes registers read-side routes on the given mux.
func (h *SearchHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/complaints/search", h.search)
	mux.HandleFunc("GET /api/complaints/{id}", h.details)
	mux.HandleFunc("GET /api/stats", h.stats)
}

// searchResponse wraps search results so the shape can grow without breaking
// clients.
type searchResponse struct {
	Results []search.Result `json:"results"`
	Count   int             `json:"count"`
}

// search handles GET /api/complaints/search?q=...&limit=&department=&urgency=
func (h *SearchHandler) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := q.Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query parameter \"q\" is required")
		return
	}

	limit := defaultSearchLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = min(n, maxSearchLimit)
	}

	results, err := h.facade.Search(r.Context(), query, limit, q.Get("department"), q.Get("urgency"))
	if err != nil {
		h.logger.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search_failed", "could not search complaints")
		return
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: results, Count: len(results)})
}

// details handles GET /api/complaints/{id}
func (h *SearchHandler) details(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	details, err := h.facade.Details(r.Context(), id)
	if err != nil {
		h.logger.Error("details lookup failed", "document_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup_failed", "could not fetch the complaint")
		return
	}
	if details == nil {
		writeError(w, http.StatusNotFound, "not_found", "no complaint with that id")
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// stats handles GET /api/stats
func (h *SearchHandler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.facade.DashboardStats(r.Context())
	if err != nil {
		h.logger.Error("stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "stats_failed", "could not compute dashboard stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
