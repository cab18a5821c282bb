package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/geoscope/internal/interfaces"
	"github.com/ternarybob/geoscope/internal/models"
)

// AuditHandler serves the audit job endpoints: job creation, status
// polling, regeneration, and the synchronous seed-crawl mode.
type AuditHandler struct {
	engine  interfaces.AuditService
	seeds   interfaces.SeedDiscoverer
	report  interfaces.ReportService
	storage interfaces.StorageManager
	logger  arbor.ILogger
}

func NewAuditHandler(
	engine interfaces.AuditService,
	seeds interfaces.SeedDiscoverer,
	report interfaces.ReportService,
	storage interfaces.StorageManager,
	logger arbor.ILogger,
) *AuditHandler {
	return &AuditHandler{
		engine:  engine,
		seeds:   seeds,
		report:  report,
		storage: storage,
		logger:  logger,
	}
}

// CreateAuditHandler handles POST /api/audit.
//
// Two modes share the endpoint: a request with only seed_url runs a
// synchronous single-hop crawl and returns candidate URLs without creating
// a job; a request with urls creates an async audit job and returns its ID.
func (h *AuditHandler) CreateAuditHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.AuditRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	if req.SeedURL != "" && len(req.URLs) == 0 {
		h.seedCrawl(w, r, &req)
		return
	}

	job, err := h.engine.CreateJob(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	h.logger.Info().
		Str("job_id", job.ID).
		Int("urls", len(job.URLs)).
		Msg("Audit job accepted")

	WriteJSON(w, http.StatusAccepted, models.JobCreatedResponse{
		JobID:     job.ID,
		Status:    job.Status,
		TotalURLs: len(job.URLs),
	})
}

// seedCrawl discovers candidate audit targets from a seed page. Runs
// synchronously within the request.
func (h *AuditHandler) seedCrawl(w http.ResponseWriter, r *http.Request, req *models.AuditRequest) {
	candidates, err := h.seeds.Discover(r.Context(), req.SeedURL, req.PathRules)
	if err != nil {
		if errors.Is(err, models.ErrFetchFailed) {
			WriteError(w, http.StatusBadGateway, fmt.Sprintf("seed crawl failed: %v", err))
			return
		}
		WriteServiceError(w, err)
		return
	}

	h.logger.Info().
		Str("seed_url", req.SeedURL).
		Int("candidates", len(candidates)).
		Msg("Seed crawl completed")

	WriteJSON(w, http.StatusOK, models.SeedCrawlResponse{
		Mode:          "seed_crawl",
		SeedURL:       req.SeedURL,
		CandidateURLs: candidates,
	})
}

// GetAuditHandler handles GET /api/audit/{job_id}, returning a point-in-time
// snapshot of the job for progress polling.
func (h *AuditHandler) GetAuditHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/audit/")
	if jobID == "" || strings.Contains(jobID, "/") {
		WriteError(w, http.StatusBadRequest, "Job ID required")
		return
	}

	snapshot, err := h.engine.GetStatus(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, snapshot)
}

// RegenerateHandler handles POST /api/audit/report: re-runs schema
// correction for one audited URL with the caller's approved entity set.
func (h *AuditHandler) RegenerateHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req models.RegenerateRequest
	if !DecodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.engine.Regenerate(r.Context(), &req)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	h.logger.Info().
		Str("job_id", req.JobID).
		Str("url", req.URL).
		Int("approved", len(req.ApprovedQIDs)).
		Msg("Schema regenerated")

	WriteJSON(w, http.StatusOK, result)
}

// ReportPDFHandler handles GET /api/audit/{job_id}/report.pdf, rendering
// a completed job's results as a PDF document.
func (h *AuditHandler) ReportPDFHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/audit/")
	jobID := strings.TrimSuffix(path, "/report.pdf")
	if jobID == "" || jobID == path {
		WriteError(w, http.StatusBadRequest, "Job ID required")
		return
	}

	job, err := h.storage.JobStorage().GetJob(r.Context(), jobID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	if !job.IsTerminal() {
		WriteError(w, http.StatusConflict, "Job is still running; report available once it completes")
		return
	}

	pdf, err := h.report.BuildPDF(job)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID).Msg("PDF generation failed")
		WriteError(w, http.StatusInternalServerError, "PDF generation failed")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=audit-%s.pdf", jobID))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// ListAuditsHandler handles GET /api/audit, listing jobs newest first.
// Optional filters: status, project_id, limit, offset.
func (h *AuditHandler) ListAuditsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	opts := &interfaces.ListOptions{
		Limit:     QueryInt(r, "limit", 50, 200),
		Offset:    QueryInt(r, "offset", 0, 0),
		Status:    models.JobStatus(r.URL.Query().Get("status")),
		ProjectID: r.URL.Query().Get("project_id"),
	}

	jobs, err := h.storage.JobStorage().ListJobs(r.Context(), opts)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	snapshots := make([]*models.JobSnapshot, 0, len(jobs))
	for _, job := range jobs {
		snapshots = append(snapshots, job.Snapshot())
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  snapshots,
		"count": len(snapshots),
	})
}
