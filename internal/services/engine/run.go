package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/geoscope/internal/common"
	"github.com/ternarybob/geoscope/internal/interfaces"
	"github.com/ternarybob/geoscope/internal/models"
)

const verifyTimeout = 30 * time.Second

// run executes a job to completion. Pre-flight verifies the inference
// provider; a dead provider fails the job before any URL is attempted.
// After that the job always ends completed, with per-URL failures recorded
// in Errors.
func (s *Service) run(state *jobState) {
	ctx := context.Background()
	job := state.job

	state.mu.Lock()
	job.Status = models.JobStatusRunning
	state.mu.Unlock()
	s.persist(ctx, state)

	verifyCtx, cancel := context.WithTimeout(ctx, verifyTimeout)
	err := s.analyzer.Verify(verifyCtx)
	cancel()
	if err != nil {
		s.fail(ctx, state, fmt.Errorf("inference provider unavailable: %w", err))
		return
	}

	concurrency := s.config.Engine.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)
	for i, pageURL := range job.URLs {
		wg.Add(1)
		sem <- struct{}{}
		idx, target := i, pageURL
		common.SafeGo(s.logger, fmt.Sprintf("engine.audit:%s:%d", job.ID, idx), func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.auditURL(ctx, state, idx, target)
		})
	}
	wg.Wait()

	s.complete(ctx, state)
}

// auditURL runs the pipeline for one URL and records its terminal outcome
// at the submission index
func (s *Service) auditURL(ctx context.Context, state *jobState, idx int, pageURL string) {
	job := state.job

	// Advertise the URL as in flight before the pipeline starts so polling
	// clients see what is currently being audited.
	state.mu.Lock()
	job.Progress.CurrentURL = pageURL
	state.mu.Unlock()

	result, analysis, err := s.pipeline.AuditPage(ctx, pageURL)

	if err == nil && analysis != nil {
		draft := &models.Draft{
			JobID:         job.ID,
			URL:           pageURL,
			RawJSONLD:     analysis.DraftJSONLD,
			SuggestedQIDs: result.SuggestedQIDs,
			CreatedAt:     time.Now(),
		}
		if saveErr := s.storage.DraftStorage().SaveDraft(ctx, draft); saveErr != nil {
			s.logger.Warn().Err(saveErr).Str("job_id", job.ID).Str("url", pageURL).Msg("Failed to save draft")
		}
	}

	state.mu.Lock()
	if err != nil {
		state.errSlots[idx] = &models.AuditError{
			URL:     pageURL,
			Stage:   models.StageOf(err),
			Message: err.Error(),
		}
		rebuildErrors(state)
	} else {
		job.Results[idx] = result
	}
	job.Progress.Current++
	snapshot := job.Snapshot()
	state.mu.Unlock()

	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("job_id", job.ID).
			Str("url", pageURL).
			Str("stage", string(models.StageOf(err))).
			Msg("Page audit failed")
	} else {
		s.publish(interfaces.EventPageAudited, map[string]any{"job_id": job.ID, "url": pageURL})
	}
	s.publish(interfaces.EventAuditProgress, snapshot)
}

// rebuildErrors reassembles job.Errors from the index-addressed slots so the
// list stays in submission order at any concurrency. Caller holds state.mu.
func rebuildErrors(state *jobState) {
	errs := make([]models.AuditError, 0, len(state.errSlots))
	for _, slot := range state.errSlots {
		if slot != nil {
			errs = append(errs, *slot)
		}
	}
	state.job.Errors = errs
}

// complete marks the job completed, flushes it to storage, and starts the
// draft eviction grace period
func (s *Service) complete(ctx context.Context, state *jobState) {
	job := state.job
	now := time.Now()

	state.mu.Lock()
	job.Status = models.JobStatusCompleted
	job.CompletedAt = &now
	job.Progress.CurrentURL = ""
	snapshot := job.Snapshot()
	state.mu.Unlock()

	s.persist(ctx, state)
	s.flushHistory(ctx, state)
	s.stampDrafts(ctx, job, now.Add(s.config.Engine.DraftTTL))

	s.logger.Info().
		Str("job_id", job.ID).
		Int("results", len(snapshot.Results)).
		Int("errors", len(snapshot.Errors)).
		Msg("Audit job completed")

	s.publish(interfaces.EventJobCompleted, snapshot)
}

// fail marks the job failed before any URL ran
func (s *Service) fail(ctx context.Context, state *jobState, cause error) {
	job := state.job
	now := time.Now()

	state.mu.Lock()
	job.Status = models.JobStatusFailed
	job.Error = cause.Error()
	job.CompletedAt = &now
	snapshot := job.Snapshot()
	state.mu.Unlock()

	s.persist(ctx, state)

	s.logger.Error().
		Err(cause).
		Str("job_id", job.ID).
		Msg("Audit job failed before processing")

	s.publish(interfaces.EventJobFailed, snapshot)
}

// persist flushes the job to storage under the read lock
func (s *Service) persist(ctx context.Context, state *jobState) {
	state.mu.RLock()
	defer state.mu.RUnlock()
	if err := s.storage.JobStorage().SaveJob(ctx, state.job); err != nil {
		s.logger.Error().Err(err).Str("job_id", state.job.ID).Msg("Failed to persist job")
	}
}

// flushHistory appends one entry per URL outcome for project-scoped jobs
func (s *Service) flushHistory(ctx context.Context, state *jobState) {
	job := state.job
	if job.ProjectID == "" {
		return
	}

	state.mu.RLock()
	defer state.mu.RUnlock()
	for i, pageURL := range job.URLs {
		entry := &models.HistoryEntry{
			ProjectID:  job.ProjectID,
			JobID:      job.ID,
			URL:        pageURL,
			Result:     job.Results[i],
			IsError:    job.Results[i] == nil,
			RecordedAt: time.Now(),
		}
		if err := s.storage.HistoryStorage().AppendEntry(ctx, entry); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Str("url", pageURL).Msg("Failed to append history entry")
		}
	}
}

// stampDrafts sets the eviction deadline on the job's drafts now that the
// job is terminal
func (s *Service) stampDrafts(ctx context.Context, job *models.AuditJob, expiry time.Time) {
	drafts := s.storage.DraftStorage()
	for _, pageURL := range job.URLs {
		draft, err := drafts.GetDraft(ctx, job.ID, pageURL)
		if err != nil {
			continue
		}
		draft.ExpiresAt = expiry
		if err := drafts.SaveDraft(ctx, draft); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Str("url", pageURL).Msg("Failed to stamp draft expiry")
		}
	}
}
