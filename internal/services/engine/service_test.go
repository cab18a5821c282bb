package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/geoscope/internal/common"
	"github.com/ternarybob/geoscope/internal/interfaces"
	"github.com/ternarybob/geoscope/internal/models"
)

// --- in-memory fakes ---

type memJobStorage struct {
	mu   sync.Mutex
	jobs map[string]*models.AuditJob
}

func (m *memJobStorage) SaveJob(_ context.Context, job *models.AuditJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *memJobStorage) GetJob(_ context.Context, id string) (*models.AuditJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", models.ErrNotFound, id)
	}
	return job, nil
}

func (m *memJobStorage) ListJobs(_ context.Context, _ *interfaces.ListOptions) ([]*models.AuditJob, error) {
	return nil, nil
}

func (m *memJobStorage) DeleteJob(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.jobs, id)
	return nil
}

func (m *memJobStorage) CountJobs(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs), nil
}

type memDraftStorage struct {
	mu     sync.Mutex
	drafts map[string]*models.Draft
}

func (m *memDraftStorage) SaveDraft(_ context.Context, draft *models.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft.Key = models.DraftKey(draft.JobID, draft.URL)
	m.drafts[draft.Key] = draft
	return nil
}

func (m *memDraftStorage) GetDraft(_ context.Context, jobID, url string) (*models.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	draft, ok := m.drafts[models.DraftKey(jobID, url)]
	if !ok {
		return nil, fmt.Errorf("%w: draft", models.ErrNotFound)
	}
	return draft, nil
}

func (m *memDraftStorage) DeleteByJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, draft := range m.drafts {
		if draft.JobID == jobID {
			delete(m.drafts, key)
		}
	}
	return nil
}

func (m *memDraftStorage) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for key, draft := range m.drafts {
		if !draft.ExpiresAt.IsZero() && draft.ExpiresAt.Before(now) {
			delete(m.drafts, key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memDraftStorage) CountDrafts(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.drafts), nil
}

type memHistoryStorage struct {
	mu      sync.Mutex
	entries []*models.HistoryEntry
}

func (m *memHistoryStorage) AppendEntry(_ context.Context, entry *models.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memHistoryStorage) ListByProject(_ context.Context, projectID, url string, _ int) ([]*models.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.HistoryEntry
	for _, e := range m.entries {
		if e.ProjectID == projectID && (url == "" || e.URL == url) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memHistoryStorage) CountEntries(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

type memStorage struct {
	job     *memJobStorage
	draft   *memDraftStorage
	history *memHistoryStorage
}

func newMemStorage() *memStorage {
	return &memStorage{
		job:     &memJobStorage{jobs: make(map[string]*models.AuditJob)},
		draft:   &memDraftStorage{drafts: make(map[string]*models.Draft)},
		history: &memHistoryStorage{},
	}
}

func (m *memStorage) JobStorage() interfaces.JobStorage         { return m.job }
func (m *memStorage) DraftStorage() interfaces.DraftStorage     { return m.draft }
func (m *memStorage) HistoryStorage() interfaces.HistoryStorage { return m.history }
func (m *memStorage) Close() error                              { return nil }

type fakePipeline struct {
	mu       sync.Mutex
	errs     map[string]error
	analyses map[string]*models.PageAnalysis
	release  chan struct{} // when set, AuditPage blocks until it is closed
}

func (p *fakePipeline) AuditPage(_ context.Context, pageURL string) (*models.Result, *models.PageAnalysis, error) {
	if p.release != nil {
		<-p.release
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.errs[pageURL]; ok {
		return nil, nil, err
	}
	analysis := p.analyses[pageURL]
	if analysis == nil {
		analysis = &models.PageAnalysis{
			PageIntent:  "Service",
			DraftJSONLD: map[string]any{"@context": "https://schema.org", "@type": "WebPage", "name": "Page"},
		}
	}
	result := &models.Result{
		URL:        pageURL,
		PageIntent: analysis.PageIntent,
		JSONLD:     analysis.DraftJSONLD,
		SuggestedQIDs: []models.ConceptCandidates{
			{Concept: "FinTech", Candidates: []models.Entity{{QID: "Q1", Label: "fintech"}}},
		},
		UsedQIDs: []models.EntityRef{{Name: "fintech", QID: "Q1"}},
	}
	return result, analysis, nil
}

type verifyAnalyzer struct {
	err error
}

func (a *verifyAnalyzer) AnalyzePage(_ context.Context, _ *models.PageContent) (*models.PageAnalysis, error) {
	return nil, nil
}
func (a *verifyAnalyzer) Verify(_ context.Context) error { return a.err }
func (a *verifyAnalyzer) Name() string                   { return "fake" }

// --- helpers ---

type testEngine struct {
	svc     *Service
	storage *memStorage
}

func newTestEngine(t *testing.T, pipeline *fakePipeline, analyzer *verifyAnalyzer) *testEngine {
	t.Helper()
	config := common.NewDefaultConfig()
	storage := newMemStorage()
	svc := NewService(config, pipeline, analyzer, storage, nil, common.GetLogger())
	return &testEngine{svc: svc, storage: storage}
}

func waitForTerminal(t *testing.T, svc *Service, jobID string) *models.JobSnapshot {
	t.Helper()
	var snapshot *models.JobSnapshot
	require.Eventually(t, func() bool {
		snap, err := svc.GetStatus(context.Background(), jobID)
		if err != nil {
			return false
		}
		if snap.Status == models.JobStatusCompleted || snap.Status == models.JobStatusFailed {
			snapshot = snap
			return true
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	return snapshot
}

// --- tests ---

func TestCreateJob_Validation(t *testing.T) {
	eng := newTestEngine(t, &fakePipeline{}, &verifyAnalyzer{})
	ctx := context.Background()

	_, err := eng.svc.CreateJob(ctx, &models.AuditRequest{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = eng.svc.CreateJob(ctx, &models.AuditRequest{URLs: []string{"ftp://example.com"}})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = eng.svc.CreateJob(ctx, &models.AuditRequest{URLs: []string{"https:///no-host"}})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	tooMany := make([]string, 11)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("https://example.com/p%d", i)
	}
	_, err = eng.svc.CreateJob(ctx, &models.AuditRequest{URLs: tooMany})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestJob_RunsToCompletion(t *testing.T) {
	pipeline := &fakePipeline{
		errs: map[string]error{
			"https://example.com/bad": models.NewStageError(models.StageInfer, fmt.Errorf("%w: quota", models.ErrInferenceFailed)),
		},
	}
	eng := newTestEngine(t, pipeline, &verifyAnalyzer{})
	ctx := context.Background()

	job, err := eng.svc.CreateJob(ctx, &models.AuditRequest{
		URLs:      []string{"https://example.com/good", "https://example.com/bad"},
		ProjectID: "p1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, 2, job.Progress.Total)

	snapshot := waitForTerminal(t, eng.svc, job.ID)

	// Per-URL failure does not fail the job.
	assert.Equal(t, models.JobStatusCompleted, snapshot.Status)
	assert.Equal(t, 2, snapshot.Progress.Current)
	require.NotNil(t, snapshot.CompletedAt)

	require.Len(t, snapshot.Results, 1)
	assert.Equal(t, "https://example.com/good", snapshot.Results[0].URL)

	require.Len(t, snapshot.Errors, 1)
	assert.Equal(t, "https://example.com/bad", snapshot.Errors[0].URL)
	assert.Equal(t, models.StageInfer, snapshot.Errors[0].Stage)

	// Draft cached for the successful URL, stamped with an expiry.
	draft, err := eng.storage.draft.GetDraft(ctx, job.ID, "https://example.com/good")
	require.NoError(t, err)
	assert.False(t, draft.ExpiresAt.IsZero())

	// One history entry per URL for project-scoped jobs.
	entries, err := eng.storage.history.ListByProject(ctx, "p1", "", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestGetStatus_ReportsInFlightURL(t *testing.T) {
	pipeline := &fakePipeline{release: make(chan struct{})}
	eng := newTestEngine(t, pipeline, &verifyAnalyzer{})
	ctx := context.Background()

	job, err := eng.svc.CreateJob(ctx, &models.AuditRequest{URLs: []string{"https://example.com/only"}})
	require.NoError(t, err)

	// The in-flight URL is advertised before its pipeline produces an outcome.
	require.Eventually(t, func() bool {
		snap, err := eng.svc.GetStatus(ctx, job.ID)
		return err == nil && snap.Progress.CurrentURL == "https://example.com/only"
	}, 5*time.Second, 10*time.Millisecond)

	snap, err := eng.svc.GetStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Progress.Current)

	close(pipeline.release)
	final := waitForTerminal(t, eng.svc, job.ID)
	assert.Equal(t, 1, final.Progress.Current)
	assert.Empty(t, final.Progress.CurrentURL)
}

func TestJob_PreflightFailure(t *testing.T) {
	eng := newTestEngine(t, &fakePipeline{}, &verifyAnalyzer{err: fmt.Errorf("%w: bad key", models.ErrInferenceFailed)})
	ctx := context.Background()

	job, err := eng.svc.CreateJob(ctx, &models.AuditRequest{URLs: []string{"https://example.com"}})
	require.NoError(t, err)

	snapshot := waitForTerminal(t, eng.svc, job.ID)

	assert.Equal(t, models.JobStatusFailed, snapshot.Status)
	assert.NotEmpty(t, snapshot.Error)
	assert.Empty(t, snapshot.Results)
	assert.Equal(t, 0, snapshot.Progress.Current)
}

func TestGetStatus_Unknown(t *testing.T) {
	eng := newTestEngine(t, &fakePipeline{}, &verifyAnalyzer{})

	_, err := eng.svc.GetStatus(context.Background(), "job_missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetStatus_StorageFallback(t *testing.T) {
	eng := newTestEngine(t, &fakePipeline{}, &verifyAnalyzer{})
	ctx := context.Background()

	stored := &models.AuditJob{
		ID:       "job_stored",
		URLs:     []string{"https://example.com"},
		Status:   models.JobStatusCompleted,
		Progress: models.JobProgress{Current: 1, Total: 1},
		Results:  []*models.Result{{URL: "https://example.com"}},
	}
	require.NoError(t, eng.storage.job.SaveJob(ctx, stored))

	snapshot, err := eng.svc.GetStatus(ctx, "job_stored")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, snapshot.Status)
	require.Len(t, snapshot.Results, 1)
}

// gatedPipeline blocks one URL until its gate closes, holding a job mid-run
type gatedPipeline struct {
	inner   *fakePipeline
	gate    chan struct{}
	blockOn string
}

func (p *gatedPipeline) AuditPage(ctx context.Context, pageURL string) (*models.Result, *models.PageAnalysis, error) {
	if pageURL == p.blockOn {
		<-p.gate
	}
	return p.inner.AuditPage(ctx, pageURL)
}

func TestRegenerate_WhileJobRunning(t *testing.T) {
	gate := make(chan struct{})
	pipeline := &gatedPipeline{inner: &fakePipeline{}, gate: gate, blockOn: "https://example.com/b"}
	storage := newMemStorage()
	svc := NewService(common.NewDefaultConfig(), pipeline, &verifyAnalyzer{}, storage, nil, common.GetLogger())
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, &models.AuditRequest{
		URLs: []string{"https://example.com/a", "https://example.com/b"},
	})
	require.NoError(t, err)

	// First URL done, second held in flight by the gate.
	require.Eventually(t, func() bool {
		snap, err := svc.GetStatus(ctx, job.ID)
		return err == nil && snap.Progress.Current == 1
	}, 5*time.Second, 10*time.Millisecond)

	result, err := svc.Regenerate(ctx, &models.RegenerateRequest{
		JobID:        job.ID,
		URL:          "https://example.com/a",
		ApprovedQIDs: []models.EntityRef{{Name: "fintech", QID: "Q1"}},
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	close(gate)
	final := waitForTerminal(t, svc, job.ID)
	assert.Equal(t, models.JobStatusCompleted, final.Status)
	require.Len(t, final.Results, 2)
}

func TestRegenerate_FromDraft(t *testing.T) {
	eng := newTestEngine(t, &fakePipeline{}, &verifyAnalyzer{})
	ctx := context.Background()

	job, err := eng.svc.CreateJob(ctx, &models.AuditRequest{URLs: []string{"https://example.com/page"}})
	require.NoError(t, err)
	waitForTerminal(t, eng.svc, job.ID)

	approved := []models.EntityRef{{Name: "foreign exchange market", QID: "Q161472"}}
	result, err := eng.svc.Regenerate(ctx, &models.RegenerateRequest{
		JobID:        job.ID,
		URL:          "https://example.com/page",
		ApprovedQIDs: approved,
	})

	require.NoError(t, err)
	assert.Equal(t, approved, result.UsedQIDs)
	require.NotNil(t, result.JSONLD)

	// Replacement is visible in subsequent snapshots.
	snapshot, err := eng.svc.GetStatus(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, snapshot.Results, 1)
	assert.Equal(t, approved, snapshot.Results[0].UsedQIDs)
}

func TestRegenerate_Idempotent(t *testing.T) {
	eng := newTestEngine(t, &fakePipeline{}, &verifyAnalyzer{})
	ctx := context.Background()

	job, err := eng.svc.CreateJob(ctx, &models.AuditRequest{URLs: []string{"https://example.com/page"}})
	require.NoError(t, err)
	waitForTerminal(t, eng.svc, job.ID)

	req := &models.RegenerateRequest{
		JobID:        job.ID,
		URL:          "https://example.com/page",
		ApprovedQIDs: []models.EntityRef{{Name: "fintech", QID: "Q86964268"}},
	}

	first, err := eng.svc.Regenerate(ctx, req)
	require.NoError(t, err)
	second, err := eng.svc.Regenerate(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.JSONLD, second.JSONLD)
	assert.Equal(t, first.UsedQIDs, second.UsedQIDs)
}

func TestRegenerate_UnknownURL(t *testing.T) {
	eng := newTestEngine(t, &fakePipeline{}, &verifyAnalyzer{})
	ctx := context.Background()

	job, err := eng.svc.CreateJob(ctx, &models.AuditRequest{URLs: []string{"https://example.com/page"}})
	require.NoError(t, err)
	waitForTerminal(t, eng.svc, job.ID)

	_, err = eng.svc.Regenerate(ctx, &models.RegenerateRequest{
		JobID:        job.ID,
		URL:          "https://example.com/other",
		ApprovedQIDs: nil,
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRegenerate_FallsBackToResult(t *testing.T) {
	eng := newTestEngine(t, &fakePipeline{}, &verifyAnalyzer{})
	ctx := context.Background()

	job, err := eng.svc.CreateJob(ctx, &models.AuditRequest{URLs: []string{"https://example.com/page"}})
	require.NoError(t, err)
	waitForTerminal(t, eng.svc, job.ID)

	// Simulate eviction of the draft cache.
	require.NoError(t, eng.storage.draft.DeleteByJob(ctx, job.ID))

	result, err := eng.svc.Regenerate(ctx, &models.RegenerateRequest{
		JobID:        job.ID,
		URL:          "https://example.com/page",
		ApprovedQIDs: []models.EntityRef{{Name: "fintech", QID: "Q86964268"}},
	})

	require.NoError(t, err)
	require.NotNil(t, result.JSONLD)
	require.Len(t, result.UsedQIDs, 1)
	assert.Equal(t, "Q86964268", result.UsedQIDs[0].QID)
}

func TestStop_DrainsRunningJobs(t *testing.T) {
	eng := newTestEngine(t, &fakePipeline{}, &verifyAnalyzer{})
	ctx := context.Background()

	job, err := eng.svc.CreateJob(ctx, &models.AuditRequest{URLs: []string{"https://example.com/page"}})
	require.NoError(t, err)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, eng.svc.Stop(stopCtx))

	snapshot, err := eng.svc.GetStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, snapshot.Status == models.JobStatusCompleted || snapshot.Status == models.JobStatusFailed)

	_, err = eng.svc.CreateJob(ctx, &models.AuditRequest{URLs: []string{"https://example.com/late"}})
	assert.Error(t, err)
}
