package interfaces

import (
	"context"

	"github.com/ternarybob/geoscope/internal/models"
)

// AuditService is the job engine: it accepts audit requests, runs page
// pipelines asynchronously, and serves status snapshots.
type AuditService interface {
	// CreateJob validates the request, persists a pending job, and starts
	// it in the background. Returns the job with status "pending".
	CreateJob(ctx context.Context, req *models.AuditRequest) (*models.AuditJob, error)

	// GetStatus returns a point-in-time snapshot of the job
	GetStatus(ctx context.Context, jobID string) (*models.JobSnapshot, error)

	// Regenerate rebuilds the corrected schema for one audited URL using
	// the caller-approved entity set. Deterministic, no new inference.
	Regenerate(ctx context.Context, req *models.RegenerateRequest) (*models.Result, error)

	// Stop cancels running jobs and waits for workers to drain
	Stop(ctx context.Context) error
}

// ReportService renders audit results as markdown and PDF
type ReportService interface {
	BuildMarkdown(job *models.AuditJob) string
	BuildPDF(job *models.AuditJob) ([]byte, error)
}
