// -----------------------------------------------------------------------
// Audit Engine - async batch audit jobs with progress tracking
// -----------------------------------------------------------------------

package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/geoscope/internal/common"
	"github.com/ternarybob/geoscope/internal/interfaces"
	"github.com/ternarybob/geoscope/internal/models"
)

// jobState pairs a job with the lock guarding it. The run goroutine is the
// only mutator; status reads take the read lock.
type jobState struct {
	mu  sync.RWMutex
	job *models.AuditJob
	// errSlots holds per-URL failures at submission index so job.Errors
	// stays in submission order at any concurrency
	errSlots []*models.AuditError
}

// Service is the audit job engine. It validates requests, runs page
// pipelines in bounded worker pools, and serves consistent job snapshots.
type Service struct {
	config   *common.Config
	pipeline interfaces.PagePipeline
	analyzer interfaces.Analyzer
	storage  interfaces.StorageManager
	events   interfaces.EventService
	logger   arbor.ILogger

	mu   sync.RWMutex
	jobs map[string]*jobState

	wg      sync.WaitGroup
	stopped atomic.Bool
	sweeper *sweeper
}

// NewService creates the audit engine
func NewService(
	config *common.Config,
	pipeline interfaces.PagePipeline,
	analyzer interfaces.Analyzer,
	storage interfaces.StorageManager,
	events interfaces.EventService,
	logger arbor.ILogger,
) *Service {
	s := &Service{
		config:   config,
		pipeline: pipeline,
		analyzer: analyzer,
		storage:  storage,
		events:   events,
		logger:   logger,
		jobs:     make(map[string]*jobState),
	}
	s.sweeper = newSweeper(s)
	return s
}

// Start launches the scheduled draft eviction sweep
func (s *Service) Start() error {
	return s.sweeper.start(s.config.Engine.EvictionSchedule)
}

// CreateJob validates the request, persists a pending job, and starts it in
// the background
func (s *Service) CreateJob(ctx context.Context, req *models.AuditRequest) (*models.AuditJob, error) {
	if s.stopped.Load() {
		return nil, fmt.Errorf("engine is shutting down")
	}
	if req == nil || len(req.URLs) == 0 {
		return nil, fmt.Errorf("%w: at least one URL is required", models.ErrInvalidInput)
	}
	maxURLs := s.config.Engine.MaxURLs
	if len(req.URLs) > maxURLs {
		return nil, fmt.Errorf("%w: maximum %d URLs per audit", models.ErrInvalidInput, maxURLs)
	}

	urls := make([]string, 0, len(req.URLs))
	for _, raw := range req.URLs {
		normalized, err := common.NormalizeURL(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", models.ErrInvalidInput, raw, err)
		}
		if err := common.ValidateAuditURL(normalized, s.config.AllowTestURLs()); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
		}
		urls = append(urls, normalized)
	}

	job := &models.AuditJob{
		ID:        common.NewJobID(),
		ProjectID: req.ProjectID,
		URLs:      urls,
		Status:    models.JobStatusPending,
		Progress:  models.JobProgress{Total: len(urls)},
		Results:   make([]*models.Result, len(urls)),
		Errors:    []models.AuditError{},
		CreatedAt: time.Now(),
	}

	state := &jobState{
		job:      job,
		errSlots: make([]*models.AuditError, len(urls)),
	}

	if err := s.storage.JobStorage().SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	s.mu.Lock()
	s.jobs[job.ID] = state
	s.mu.Unlock()

	s.logger.Info().
		Str("job_id", job.ID).
		Int("total_urls", len(urls)).
		Str("project_id", job.ProjectID).
		Msg("Audit job created")

	s.publish(interfaces.EventJobCreated, job.Snapshot())

	s.wg.Add(1)
	common.SafeGo(s.logger, "engine.run:"+job.ID, func() {
		defer s.wg.Done()
		s.run(state)
	})

	return job, nil
}

// GetStatus returns a point-in-time snapshot of the job. In-memory state is
// preferred; finished jobs evicted from memory fall back to storage.
func (s *Service) GetStatus(ctx context.Context, jobID string) (*models.JobSnapshot, error) {
	s.mu.RLock()
	state, ok := s.jobs[jobID]
	s.mu.RUnlock()

	if ok {
		state.mu.RLock()
		defer state.mu.RUnlock()
		return state.job.Snapshot(), nil
	}

	job, err := s.storage.JobStorage().GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return job.Snapshot(), nil
}

// Stop halts the eviction sweep and waits for running jobs to drain.
// Returns once everything finished or ctx expired.
func (s *Service) Stop(ctx context.Context) error {
	s.stopped.Store(true)
	s.sweeper.stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Audit engine stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine shutdown timed out: %w", ctx.Err())
	}
}

// publish sends an engine event without blocking the caller
func (s *Service) publish(eventType interfaces.EventType, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(context.Background(), interfaces.Event{Type: eventType, Payload: payload}); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(eventType)).Msg("Failed to publish engine event")
	}
}

var _ interfaces.AuditService = (*Service)(nil)
