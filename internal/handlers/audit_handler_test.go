package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/geoscope/internal/models"
)

type fakeEngine struct {
	createErr error
	statusErr error
	lastReq   *models.AuditRequest
}

func (f *fakeEngine) CreateJob(ctx context.Context, req *models.AuditRequest) (*models.AuditJob, error) {
	f.lastReq = req
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &models.AuditJob{
		ID:     "job-123",
		URLs:   req.URLs,
		Status: models.JobStatusPending,
	}, nil
}

func (f *fakeEngine) GetStatus(ctx context.Context, jobID string) (*models.JobSnapshot, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &models.JobSnapshot{JobID: jobID, Status: models.JobStatusRunning}, nil
}

func (f *fakeEngine) Regenerate(ctx context.Context, req *models.RegenerateRequest) (*models.Result, error) {
	return &models.Result{URL: req.URL}, nil
}

func (f *fakeEngine) Stop(ctx context.Context) error { return nil }

type fakeDiscoverer struct {
	candidates []string
	err        error
	lastRules  map[string]int
}

func (f *fakeDiscoverer) Discover(ctx context.Context, seedURL string, pathRules map[string]int) ([]string, error) {
	f.lastRules = pathRules
	return f.candidates, f.err
}

func newTestAuditHandler(engine *fakeEngine, seeds *fakeDiscoverer) *AuditHandler {
	return NewAuditHandler(engine, seeds, nil, nil, arbor.NewLogger())
}

func TestCreateAuditHandler_StartsJob(t *testing.T) {
	engine := &fakeEngine{}
	h := newTestAuditHandler(engine, &fakeDiscoverer{})

	body := `{"urls": ["https://example.com/services"]}`
	req := httptest.NewRequest("POST", "/api/audit", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateAuditHandler(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp models.JobCreatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "job-123", resp.JobID)
	require.Equal(t, models.JobStatusPending, resp.Status)
	require.Equal(t, 1, resp.TotalURLs)
}

func TestCreateAuditHandler_SeedCrawlMode(t *testing.T) {
	engine := &fakeEngine{}
	seeds := &fakeDiscoverer{candidates: []string{"https://example.com/services/seo"}}
	h := newTestAuditHandler(engine, seeds)

	body := `{"seed_url": "https://example.com", "path_rules": {"/services/": 5}}`
	req := httptest.NewRequest("POST", "/api/audit", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateAuditHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, engine.lastReq, "seed crawl must not create a job")
	require.Equal(t, map[string]int{"/services/": 5}, seeds.lastRules)

	var resp models.SeedCrawlResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "seed_crawl", resp.Mode)
	require.Equal(t, []string{"https://example.com/services/seo"}, resp.CandidateURLs)
}

func TestCreateAuditHandler_InvalidInput(t *testing.T) {
	engine := &fakeEngine{createErr: models.ErrInvalidInput}
	h := newTestAuditHandler(engine, &fakeDiscoverer{})

	body := `{"urls": ["https://example.com"]}`
	req := httptest.NewRequest("POST", "/api/audit", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.CreateAuditHandler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAuditHandler_MalformedBody(t *testing.T) {
	h := newTestAuditHandler(&fakeEngine{}, &fakeDiscoverer{})

	req := httptest.NewRequest("POST", "/api/audit", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	h.CreateAuditHandler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAuditHandler(t *testing.T) {
	h := newTestAuditHandler(&fakeEngine{}, &fakeDiscoverer{})

	req := httptest.NewRequest("GET", "/api/audit/job-123", nil)
	rec := httptest.NewRecorder()

	h.GetAuditHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot models.JobSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	require.Equal(t, "job-123", snapshot.JobID)
}

func TestGetAuditHandler_UnknownJob(t *testing.T) {
	h := newTestAuditHandler(&fakeEngine{statusErr: models.ErrNotFound}, &fakeDiscoverer{})

	req := httptest.NewRequest("GET", "/api/audit/nope", nil)
	rec := httptest.NewRecorder()

	h.GetAuditHandler(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRegenerateHandler(t *testing.T) {
	h := newTestAuditHandler(&fakeEngine{}, &fakeDiscoverer{})

	body := `{"job_id": "job-123", "url": "https://example.com/services", "approved_qids": [{"qid": "Q312", "name": "Apple Inc."}]}`
	req := httptest.NewRequest("POST", "/api/audit/report", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.RegenerateHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result models.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, "https://example.com/services", result.URL)
}

func TestRegenerateHandler_MissingFields(t *testing.T) {
	h := newTestAuditHandler(&fakeEngine{}, &fakeDiscoverer{})

	req := httptest.NewRequest("POST", "/api/audit/report", strings.NewReader(`{"url": "https://example.com"}`))
	rec := httptest.NewRecorder()

	h.RegenerateHandler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
