package models

import "time"

// Draft is the pre-correction intermediate state of a Result: the raw
// inferred JSON-LD plus resolver suggestions, keyed by (job, url).
//
// Drafts exist so regenerate can re-run schema correction without repeating
// fetch/render/infer. They are written when the pipeline finishes inference
// for a URL, read (never deleted) by regenerate, and evicted by a sweep
// some grace period after the owning job terminates. Regeneration after
// eviction falls back to the persisted Result's json_ld as the raw input.
type Draft struct {
	Key           string              `json:"key" badgerhold:"key"` // DraftKey(jobID, url)
	JobID         string              `json:"job_id"`
	URL           string              `json:"url"`
	RawJSONLD     any                 `json:"raw_json_ld"`
	SuggestedQIDs []ConceptCandidates `json:"suggested_qids"`
	CreatedAt     time.Time           `json:"created_at"`
	// ExpiresAt is zero while the owning job is live; the engine stamps it
	// when the job terminates and the sweep removes expired drafts.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// DraftKey builds the storage key for a draft.
func DraftKey(jobID, url string) string {
	return jobID + "|" + url
}

// HistoryEntry is an append-only record of a produced (or regenerated)
// Result for a project URL. History is owned by storage; the job itself
// keeps only the latest Result per URL.
type HistoryEntry struct {
	ID         uint64    `json:"id" badgerhold:"key"`
	ProjectID  string    `json:"project_id"`
	JobID      string    `json:"job_id"`
	URL        string    `json:"url"`
	Result     *Result   `json:"result"`
	IsError    bool      `json:"is_error"`
	RecordedAt time.Time `json:"recorded_at"`
}
