package server

import (
	"net/http"
	"strings"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (live job progress)
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Audit jobs
	mux.HandleFunc("/api/audit", s.handleAuditRoute)   // POST (create / seed crawl), GET (list)
	mux.HandleFunc("/api/audit/", s.handleAuditRoutes) // GET /{job_id}, GET /{job_id}/report.pdf, POST /report

	// API routes - Schema validation (corrector-only, no job)
	mux.HandleFunc("/api/schema/validate", s.app.SchemaHandler.ValidateHandler)

	// API routes - Entity search (direct knowledge-graph lookup)
	mux.HandleFunc("/api/entities/search", s.app.EntityHandler.SearchHandler)

	// API routes - Per-project history
	mux.HandleFunc("/api/history", s.app.HistoryHandler.ListHandler)

	// API routes - System
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleAuditRoute routes /api/audit requests (create and list)
func (s *Server) handleAuditRoute(w http.ResponseWriter, r *http.Request) {
	RouteByMethod(w, r, MethodRouter{
		"POST": s.app.AuditHandler.CreateAuditHandler,
		"GET":  s.app.AuditHandler.ListAuditsHandler,
	})
}

// handleAuditRoutes routes /api/audit/{...} requests
func (s *Server) handleAuditRoutes(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// POST /api/audit/report - regenerate a corrected schema
	if path == "/api/audit/report" {
		s.app.AuditHandler.RegenerateHandler(w, r)
		return
	}

	// GET /api/audit/{job_id}/report.pdf
	if r.Method == "GET" && strings.HasSuffix(path, "/report.pdf") {
		s.app.AuditHandler.ReportPDFHandler(w, r)
		return
	}

	// GET /api/audit/{job_id}
	if r.Method == "GET" && len(path) > len("/api/audit/") {
		s.app.AuditHandler.GetAuditHandler(w, r)
		return
	}

	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}
