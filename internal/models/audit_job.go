package models

import (
	"encoding/json"
	"time"
)

// JobStatus represents the state of an audit job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// PipelineStage identifies which phase of the page pipeline produced a
// per-URL failure. Recorded on AuditError entries.
type PipelineStage string

const (
	StageFetch   PipelineStage = "fetch"
	StageRender  PipelineStage = "render"
	StageInfer   PipelineStage = "infer"
	StageCorrect PipelineStage = "correct"
)

// JobProgress tracks audit job progress. Current counts terminal per-URL
// outcomes (success or failure), so the bar always reaches Total.
type JobProgress struct {
	Current    int    `json:"current"`
	Total      int    `json:"total"`
	CurrentURL string `json:"current_url"`
}

// AuditError records a per-URL pipeline failure. Individual URL failures do
// not fail the job; they accumulate here in submission order.
type AuditError struct {
	URL     string        `json:"url"`
	Stage   PipelineStage `json:"stage"`
	Message string        `json:"message"`
}

// AuditJob represents a batch audit over an ordered list of URLs.
//
// Lifecycle: pending -> running -> completed|failed, never reversed.
// Progress.Total is fixed at creation and equals len(URLs). Results and
// Errors are recorded at each URL's submission index; a nil slot in Results
// means that URL failed (its entry is in Errors instead).
//
// The engine goroutine that runs the job is the only writer; readers obtain
// consistent views via Snapshot.
type AuditJob struct {
	ID          string       `json:"id" badgerhold:"key"`
	ProjectID   string       `json:"project_id,omitempty"`
	UserID      string       `json:"user_id,omitempty"` // display only
	URLs        []string     `json:"urls"`
	Status      JobStatus    `json:"status"`
	Progress    JobProgress  `json:"progress"`
	Results     []*Result    `json:"results"`
	Errors      []AuditError `json:"errors"`
	Error       string       `json:"error,omitempty"` // engine-level fault detail, set only when Status is failed
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// JobSnapshot is the wire shape returned by the status endpoint. Results are
// compacted (nil failure slots removed) so clients see only produced results,
// while Errors carry the failed URLs.
type JobSnapshot struct {
	JobID       string       `json:"job_id"`
	ProjectID   string       `json:"project_id,omitempty"`
	Status      JobStatus    `json:"status"`
	Progress    JobProgress  `json:"progress"`
	Results     []*Result    `json:"results"`
	Errors      []AuditError `json:"errors"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// Snapshot builds a JobSnapshot from the job's current state. Caller must
// hold the engine's lock for the job; the returned value shares Result
// pointers but Results/Errors slices are copied.
func (j *AuditJob) Snapshot() *JobSnapshot {
	results := make([]*Result, 0, len(j.Results))
	for _, r := range j.Results {
		if r != nil {
			results = append(results, r)
		}
	}
	errs := make([]AuditError, len(j.Errors))
	copy(errs, j.Errors)

	return &JobSnapshot{
		JobID:       j.ID,
		ProjectID:   j.ProjectID,
		Status:      j.Status,
		Progress:    j.Progress,
		Results:     results,
		Errors:      errs,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
	}
}

// ResultIndex returns the submission index of url within the job, or -1 if
// the URL is not part of the job. Matching is exact.
func (j *AuditJob) ResultIndex(url string) int {
	for i, u := range j.URLs {
		if u == url {
			return i
		}
	}
	return -1
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *AuditJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// ToJSON serializes the job for storage or debugging
func (j *AuditJob) ToJSON() (string, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
