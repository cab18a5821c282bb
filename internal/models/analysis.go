package models

// PageAnalysis is the structured output of the inference stage for one page.
type PageAnalysis struct {
	PageIntent          string   `json:"page_intent"`
	VisibilityDiagnosis string   `json:"visibility_diagnosis"`
	FixPlan             string   `json:"fix_plan"`
	DraftJSONLD         any      `json:"draft_json_ld"`
	SuggestedConcepts   []string `json:"suggested_concepts"`
	// RawResponse is the full untouched model output.
	RawResponse string `json:"raw_response"`
}

// SchemaParseError describes a JSON-LD block on the page that failed to
// parse. Surfaced to the model in the audit prompt.
type SchemaParseError struct {
	Block   int    `json:"block"`
	Error   string `json:"error"`
	Preview string `json:"preview"`
}

// IndexabilitySignals are crawl-relevant page signals extracted from HTML.
type IndexabilitySignals struct {
	RobotsMeta string `json:"robots_meta,omitempty"`
	Canonical  string `json:"canonical,omitempty"`
}

// SchemaAudit summarizes the structured data found in one HTML variant
// (server-side or rendered) of a page.
type SchemaAudit struct {
	BlocksCount int                 `json:"blocks_count"`
	ErrorsCount int                 `json:"errors_count"`
	Types       map[string]int      `json:"types"`
	Signals     IndexabilitySignals `json:"signals"`
	ErrorsPreview []SchemaParseError `json:"errors_preview,omitempty"`
}

// PageContent is the processed page data handed to the inference stage.
// Text and Markdown come from the preferred HTML variant (rendered when
// available, server otherwise).
type PageContent struct {
	URL                   string             `json:"url"`
	Text                  string             `json:"text"`
	Markdown              string             `json:"markdown"`
	Chunks                []string           `json:"chunks"`
	CandidateServiceURLs  []string           `json:"candidate_service_urls"`
	ParsedSchema          []map[string]any   `json:"parsed_schema"`
	SchemaErrors          []SchemaParseError `json:"schema_errors"`
	ServerAudit           *SchemaAudit       `json:"server_audit,omitempty"`
	RenderedAudit         *SchemaAudit       `json:"rendered_audit,omitempty"`
	RenderedHTMLAvailable bool               `json:"rendered_html_available"`
}
