package models

// AuditRequest starts a batch audit or, when only SeedURL is set, a
// single-hop candidate discovery.
type AuditRequest struct {
	URLs      []string       `json:"urls" validate:"omitempty,dive,url"`
	SeedURL   string         `json:"seed_url" validate:"omitempty,url"`
	PathRules map[string]int `json:"path_rules,omitempty"`
	ProjectID string         `json:"project_id,omitempty"`
}

// RegenerateRequest re-runs schema correction for one URL of an existing job
// with the caller's approved entity links.
type RegenerateRequest struct {
	JobID        string      `json:"job_id" validate:"required"`
	URL          string      `json:"url" validate:"required,url"`
	ApprovedQIDs []EntityRef `json:"approved_qids" validate:"dive"`
	ProjectID    string      `json:"project_id,omitempty"`
}

// ValidateSchemaRequest runs the schema corrector in validation-only mode
// (no approved entities).
type ValidateSchemaRequest struct {
	JSONLD any `json:"jsonld" validate:"required"`
}

// SeedCrawlResponse returns discovered candidate URLs; no job is created.
type SeedCrawlResponse struct {
	Mode          string   `json:"mode"`
	SeedURL       string   `json:"seed_url"`
	CandidateURLs []string `json:"candidate_urls"`
}

// JobCreatedResponse acknowledges an accepted audit job.
type JobCreatedResponse struct {
	JobID     string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	TotalURLs int       `json:"total_urls"`
}

// ValidateSchemaResponse is the corrector output for validation-only mode.
type ValidateSchemaResponse struct {
	JSONLD          any          `json:"json_ld"`
	Corrections     []Correction `json:"corrections"`
	FlattenedSchema string       `json:"flattened_schema"`
}

// EntitySearchResponse wraps direct knowledge-graph search results.
type EntitySearchResponse struct {
	Query   string   `json:"query"`
	Results []Entity `json:"results"`
}
