package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/geoscope/internal/common"
)

type APIHandler struct {
	logger    arbor.ILogger
	startedAt time.Time
}

func NewAPIHandler() *APIHandler {
	return &APIHandler{
		logger:    common.GetLogger(),
		startedAt: time.Now(),
	}
}

// VersionHandler returns build and version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}

// HealthHandler returns liveness status with process uptime
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": common.ServiceName,
		"version": common.GetVersion(),
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
