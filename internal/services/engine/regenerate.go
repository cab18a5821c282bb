package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/geoscope/internal/models"
	"github.com/ternarybob/geoscope/internal/services/schema"
)

// Regenerate rebuilds the corrected schema for one audited URL with the
// caller's approved entity set. No new inference runs: the raw schema comes
// from the cached draft, or from the stored result when the draft has been
// evicted. The result at the URL's index is replaced wholesale; the rest of
// the job is untouched, so this is safe while the job is still running.
func (s *Service) Regenerate(ctx context.Context, req *models.RegenerateRequest) (*models.Result, error) {
	if req == nil || req.JobID == "" || req.URL == "" {
		return nil, fmt.Errorf("%w: job_id and url are required", models.ErrInvalidInput)
	}

	state, err := s.jobState(ctx, req.JobID)
	if err != nil {
		return nil, err
	}
	job := state.job

	idx := job.ResultIndex(req.URL)
	if idx < 0 {
		return nil, fmt.Errorf("%w: url %s is not part of job %s", models.ErrNotFound, req.URL, req.JobID)
	}

	approved := req.ApprovedQIDs
	if approved == nil {
		approved = []models.EntityRef{}
	}

	raw, suggested, err := s.rawSchemaFor(ctx, state, idx, req.JobID, req.URL)
	if err != nil {
		return nil, err
	}

	corrected, err := schema.Correct(raw, approved)
	if err != nil {
		return nil, fmt.Errorf("schema correction failed: %w", err)
	}

	state.mu.Lock()
	previous := job.Results[idx]
	regenerated := buildRegenerated(previous, req.URL, corrected, approved, suggested)
	job.Results[idx] = regenerated
	terminal := job.IsTerminal()
	state.mu.Unlock()

	if terminal {
		s.persist(ctx, state)
	}

	if req.ProjectID != "" {
		entry := &models.HistoryEntry{
			ProjectID:  req.ProjectID,
			JobID:      req.JobID,
			URL:        req.URL,
			Result:     regenerated,
			RecordedAt: time.Now(),
		}
		if err := s.storage.HistoryStorage().AppendEntry(ctx, entry); err != nil {
			s.logger.Warn().Err(err).Str("job_id", req.JobID).Str("url", req.URL).Msg("Failed to append regeneration history")
		}
	}

	s.logger.Info().
		Str("job_id", req.JobID).
		Str("url", req.URL).
		Int("approved_qids", len(approved)).
		Msg("Result regenerated with approved entities")

	return regenerated, nil
}

// jobState returns the in-memory state for a job, loading finished jobs
// from storage into memory when needed
func (s *Service) jobState(ctx context.Context, jobID string) (*jobState, error) {
	s.mu.RLock()
	state, ok := s.jobs[jobID]
	s.mu.RUnlock()
	if ok {
		return state, nil
	}

	job, err := s.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.jobs[jobID]; ok {
		return existing, nil
	}
	state = &jobState{job: job, errSlots: make([]*models.AuditError, len(job.URLs))}
	s.jobs[jobID] = state
	return state, nil
}

// rawSchemaFor picks the regeneration input: the draft's raw JSON-LD when
// still cached, else the stored result's corrected JSON-LD
func (s *Service) rawSchemaFor(ctx context.Context, state *jobState, idx int, jobID, url string) (any, []models.ConceptCandidates, error) {
	if draft, err := s.storage.DraftStorage().GetDraft(ctx, jobID, url); err == nil && draft.RawJSONLD != nil {
		return draft.RawJSONLD, draft.SuggestedQIDs, nil
	}

	state.mu.RLock()
	defer state.mu.RUnlock()
	result := state.job.Results[idx]
	if result == nil || result.JSONLD == nil {
		return nil, nil, fmt.Errorf("%w: no schema available to regenerate for %s", models.ErrNotFound, url)
	}
	return result.JSONLD, result.SuggestedQIDs, nil
}

// buildRegenerated assembles the replacement result. Report sections carry
// over from the previous result when one exists; UsedQIDs is exactly the
// caller's approved set.
func buildRegenerated(
	previous *models.Result,
	url string,
	corrected *schema.CorrectionResult,
	approved []models.EntityRef,
	suggested []models.ConceptCandidates,
) *models.Result {
	result := &models.Result{
		URL:               url,
		JSONLD:            corrected.JSONLD,
		JSONLDCorrections: corrected.Corrections,
		FlattenedSchema:   corrected.FlattenedSchema,
		BestPractices:     schema.BestPracticesText,
		UsedQIDs:          approved,
		SuggestedQIDs:     suggested,
	}
	if previous != nil {
		result.PageIntent = previous.PageIntent
		result.VisibilityDiagnosis = previous.VisibilityDiagnosis
		result.FixPlan = previous.FixPlan
		result.SuggestedConcepts = previous.SuggestedConcepts
		result.RenderedHTMLAvailable = previous.RenderedHTMLAvailable
		result.RawResponse = previous.RawResponse
		if result.SuggestedQIDs == nil {
			result.SuggestedQIDs = previous.SuggestedQIDs
		}
	}
	return result
}
