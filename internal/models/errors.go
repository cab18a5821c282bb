package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for the audit engine. Handlers map these to HTTP status
// codes; the pipeline maps stage-level failures to AuditError records instead
// of propagating them.
var (
	// ErrInvalidInput indicates a malformed request (empty URL list, relative
	// URL, unsupported scheme). Rejected before any job state is created.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates an unknown job ID or a URL that is not part of
	// the referenced job.
	ErrNotFound = errors.New("not found")

	// ErrFetchFailed indicates the raw HTML fetch for a URL failed.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrRenderUnavailable indicates the headless renderer could not produce
	// rendered HTML. Callers degrade to fetch-only HTML rather than failing.
	ErrRenderUnavailable = errors.New("render unavailable")

	// ErrInferenceFailed indicates the LLM analysis for a URL failed after
	// retries.
	ErrInferenceFailed = errors.New("inference failed")

	// ErrResolutionUnavailable indicates the knowledge-graph search backend
	// is unreachable. The pipeline treats this as an empty candidate list;
	// the direct search endpoint surfaces it as an error.
	ErrResolutionUnavailable = errors.New("entity resolution unavailable")
)

// StageError wraps a pipeline failure with the stage it occurred in.
// The engine flattens these into AuditError records on the job.
type StageError struct {
	Stage PipelineStage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with the pipeline stage it occurred in
func NewStageError(stage PipelineStage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}

// StageOf extracts the pipeline stage from an error chain.
// Returns StageFetch when no StageError is present, since fetch is the
// first stage and an unattributed failure happened before any result.
func StageOf(err error) PipelineStage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return StageFetch
}
