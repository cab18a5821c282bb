package models

// Entity is a knowledge-graph candidate returned by the resolver. Entities
// are externally sourced reference data and never mutated locally.
type Entity struct {
	QID         string `json:"qid"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// EntityRef is a user-approved (or default-selected) entity link embedded
// into corrected JSON-LD: display name plus stable knowledge-graph ID.
type EntityRef struct {
	Name string `json:"name"`
	QID  string `json:"qid"`
}

// ConceptCandidates groups the ranked resolver candidates for one suggested
// concept. A concept that resolved to nothing keeps an empty Candidates list
// so the user can see it was considered.
type ConceptCandidates struct {
	Concept    string   `json:"concept"`
	Candidates []Entity `json:"candidates"`
}

// Correction records one structural transform applied by the schema
// corrector, with a human-readable rationale.
type Correction struct {
	Transform string `json:"transform"`
	NodeID    string `json:"node_id,omitempty"`
	Detail    string `json:"detail"`
}

// Result is the per-URL audit outcome. Immutable once produced, except that
// regeneration replaces it wholesale at the same index within its job.
type Result struct {
	URL                   string              `json:"url"`
	PageIntent            string              `json:"page_intent"`
	VisibilityDiagnosis   string              `json:"visibility_diagnosis"`
	FixPlan               string              `json:"fix_plan"`
	JSONLD                any                 `json:"json_ld"`
	JSONLDCorrections     []Correction        `json:"json_ld_corrections"`
	FlattenedSchema       string              `json:"flattened_schema"`
	BestPractices         string              `json:"best_practices"`
	SuggestedConcepts     []string            `json:"suggested_concepts"`
	SuggestedQIDs         []ConceptCandidates `json:"suggested_qids"`
	UsedQIDs              []EntityRef         `json:"used_qids"`
	RenderedHTMLAvailable bool                `json:"rendered_html_available"`
	// RawResponse keeps the untouched model output for debuggability.
	RawResponse string `json:"raw_response"`
}
