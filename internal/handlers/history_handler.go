package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/geoscope/internal/interfaces"
)

// HistoryHandler serves per-project audit history
type HistoryHandler struct {
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

func NewHistoryHandler(storage interfaces.StorageManager, logger arbor.ILogger) *HistoryHandler {
	return &HistoryHandler{storage: storage, logger: logger}
}

// ListHandler handles GET /api/history?project_id=<id>&url=<url>&limit=<n>,
// returning newest-first entries for a project, optionally scoped to one URL.
func (h *HistoryHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	projectID := r.URL.Query().Get("project_id")
	if projectID == "" {
		WriteError(w, http.StatusBadRequest, "Query parameter 'project_id' is required")
		return
	}
	url := r.URL.Query().Get("url")
	limit := QueryInt(r, "limit", 50, 500)

	entries, err := h.storage.HistoryStorage().ListByProject(r.Context(), projectID, url, limit)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"project_id": projectID,
		"entries":    entries,
		"count":      len(entries),
	})
}
