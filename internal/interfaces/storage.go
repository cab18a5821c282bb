package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/geoscope/internal/models"
)

// ListOptions controls list queries against job and history storage
type ListOptions struct {
	Limit     int
	Offset    int
	Status    models.JobStatus // Filter by job status (empty = all)
	ProjectID string           // Filter by project (empty = all)
}

// JobStorage - interface for audit job persistence
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.AuditJob) error
	GetJob(ctx context.Context, id string) (*models.AuditJob, error)
	ListJobs(ctx context.Context, opts *ListOptions) ([]*models.AuditJob, error)
	DeleteJob(ctx context.Context, id string) error
	CountJobs(ctx context.Context) (int, error)
}

// DraftStorage - interface for draft schema persistence.
// Drafts are keyed by (job ID, URL) and carry an expiry; expired drafts
// are swept by the scheduled eviction job.
type DraftStorage interface {
	SaveDraft(ctx context.Context, draft *models.Draft) error
	GetDraft(ctx context.Context, jobID, url string) (*models.Draft, error)
	DeleteByJob(ctx context.Context, jobID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	CountDrafts(ctx context.Context) (int, error)
}

// HistoryStorage - interface for per-project audit history
type HistoryStorage interface {
	AppendEntry(ctx context.Context, entry *models.HistoryEntry) error
	// ListByProject returns newest-first entries for a project, optionally
	// filtered to one URL. url == "" means all URLs.
	ListByProject(ctx context.Context, projectID, url string, limit int) ([]*models.HistoryEntry, error)
	CountEntries(ctx context.Context) (int, error)
}

// StorageManager provides access to all storage interfaces backed by a
// single database connection
type StorageManager interface {
	JobStorage() JobStorage
	DraftStorage() DraftStorage
	HistoryStorage() HistoryStorage
	Close() error
}
