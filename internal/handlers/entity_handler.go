package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/geoscope/internal/interfaces"
	"github.com/ternarybob/geoscope/internal/models"
)

// EntityHandler serves direct knowledge-graph entity search, used by the
// review UI to find replacement entities for a concept.
type EntityHandler struct {
	searcher interfaces.EntitySearcher
	logger   arbor.ILogger
}

func NewEntityHandler(searcher interfaces.EntitySearcher, logger arbor.ILogger) *EntityHandler {
	return &EntityHandler{searcher: searcher, logger: logger}
}

// SearchHandler handles GET /api/entities/search?q=<concept>&limit=<n>
func (h *EntityHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		WriteError(w, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}
	limit := QueryInt(r, "limit", 5, 20)

	results, err := h.searcher.Search(r.Context(), query, limit)
	if err != nil {
		h.logger.Warn().Err(err).Str("query", query).Msg("Entity search failed")
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, models.EntitySearchResponse{
		Query:   query,
		Results: results,
	})
}
