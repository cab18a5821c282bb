package badger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/geoscope/internal/interfaces"
	"github.com/ternarybob/geoscope/internal/models"
)

func newTestDB(t *testing.T) *BadgerDB {
	t.Helper()

	options := badgerhold.DefaultOptions
	options.Dir = t.TempDir()
	options.ValueDir = options.Dir
	options.Logger = nil
	options.Encoder = json.Marshal
	options.Decoder = json.Unmarshal

	store, err := badgerhold.Open(options)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	return &BadgerDB{store: store, logger: arbor.NewLogger()}
}

func TestJobStorage_SaveGetDelete(t *testing.T) {
	storage := NewJobStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	job := &models.AuditJob{
		ID:        "job_abc123",
		ProjectID: "proj-1",
		URLs:      []string{"https://example.com"},
		Status:    models.JobStatusPending,
		Progress:  models.JobProgress{Total: 1},
		Results:   make([]*models.Result, 1),
		CreatedAt: time.Now(),
	}
	if err := storage.SaveJob(ctx, job); err != nil {
		t.Fatalf("Failed to save job: %v", err)
	}

	loaded, err := storage.GetJob(ctx, "job_abc123")
	if err != nil {
		t.Fatalf("Failed to get job: %v", err)
	}
	if loaded.Status != models.JobStatusPending {
		t.Errorf("Expected status pending, got %s", loaded.Status)
	}
	if loaded.Progress.Total != 1 {
		t.Errorf("Expected total 1, got %d", loaded.Progress.Total)
	}

	// Upsert with new status
	job.Status = models.JobStatusCompleted
	if err := storage.SaveJob(ctx, job); err != nil {
		t.Fatalf("Failed to update job: %v", err)
	}
	loaded, err = storage.GetJob(ctx, "job_abc123")
	if err != nil {
		t.Fatalf("Failed to re-get job: %v", err)
	}
	if loaded.Status != models.JobStatusCompleted {
		t.Errorf("Expected status completed, got %s", loaded.Status)
	}

	if err := storage.DeleteJob(ctx, "job_abc123"); err != nil {
		t.Fatalf("Failed to delete job: %v", err)
	}
	if _, err := storage.GetJob(ctx, "job_abc123"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestJobStorage_GetUnknown(t *testing.T) {
	storage := NewJobStorage(newTestDB(t), arbor.NewLogger())

	_, err := storage.GetJob(context.Background(), "job_missing")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestJobStorage_ListFilters(t *testing.T) {
	storage := NewJobStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	now := time.Now()
	jobs := []*models.AuditJob{
		{ID: "job_1", ProjectID: "p1", Status: models.JobStatusCompleted, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "job_2", ProjectID: "p1", Status: models.JobStatusRunning, CreatedAt: now.Add(-1 * time.Hour)},
		{ID: "job_3", ProjectID: "p2", Status: models.JobStatusCompleted, CreatedAt: now},
	}
	for _, job := range jobs {
		if err := storage.SaveJob(ctx, job); err != nil {
			t.Fatalf("Failed to save job %s: %v", job.ID, err)
		}
	}

	completed, err := storage.ListJobs(ctx, &interfaces.ListOptions{Status: models.JobStatusCompleted})
	if err != nil {
		t.Fatalf("Failed to list completed jobs: %v", err)
	}
	if len(completed) != 2 {
		t.Fatalf("Expected 2 completed jobs, got %d", len(completed))
	}
	// Newest first
	if completed[0].ID != "job_3" {
		t.Errorf("Expected job_3 first, got %s", completed[0].ID)
	}

	p1, err := storage.ListJobs(ctx, &interfaces.ListOptions{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("Failed to list p1 jobs: %v", err)
	}
	if len(p1) != 2 {
		t.Errorf("Expected 2 p1 jobs, got %d", len(p1))
	}

	limited, err := storage.ListJobs(ctx, &interfaces.ListOptions{Limit: 1})
	if err != nil {
		t.Fatalf("Failed to list limited jobs: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected 1 job with limit, got %d", len(limited))
	}

	count, err := storage.CountJobs(ctx)
	if err != nil {
		t.Fatalf("Failed to count jobs: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 jobs, got %d", count)
	}
}

func TestDraftStorage_SaveGet(t *testing.T) {
	storage := NewDraftStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	draft := &models.Draft{
		JobID:     "job_1",
		URL:       "https://example.com/about",
		RawJSONLD: map[string]any{"@type": "WebPage"},
		SuggestedQIDs: []models.ConceptCandidates{
			{Concept: "FinTech", Candidates: []models.Entity{{QID: "Q1", Label: "fintech"}}},
		},
		CreatedAt: time.Now(),
	}
	if err := storage.SaveDraft(ctx, draft); err != nil {
		t.Fatalf("Failed to save draft: %v", err)
	}

	loaded, err := storage.GetDraft(ctx, "job_1", "https://example.com/about")
	if err != nil {
		t.Fatalf("Failed to get draft: %v", err)
	}
	if loaded.Key != models.DraftKey("job_1", "https://example.com/about") {
		t.Errorf("Unexpected draft key %s", loaded.Key)
	}
	if len(loaded.SuggestedQIDs) != 1 {
		t.Errorf("Expected 1 suggested concept, got %d", len(loaded.SuggestedQIDs))
	}

	if _, err := storage.GetDraft(ctx, "job_1", "https://example.com/other"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown draft, got %v", err)
	}
}

func TestDraftStorage_DeleteExpired(t *testing.T) {
	storage := NewDraftStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()
	now := time.Now()

	drafts := []*models.Draft{
		{JobID: "job_1", URL: "https://example.com/a", ExpiresAt: now.Add(-time.Hour)},
		{JobID: "job_1", URL: "https://example.com/b", ExpiresAt: now.Add(time.Hour)},
		{JobID: "job_2", URL: "https://example.com/c"}, // live job, no expiry
	}
	for _, d := range drafts {
		if err := storage.SaveDraft(ctx, d); err != nil {
			t.Fatalf("Failed to save draft: %v", err)
		}
	}

	deleted, err := storage.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("Failed to delete expired drafts: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 expired draft deleted, got %d", deleted)
	}

	count, err := storage.CountDrafts(ctx)
	if err != nil {
		t.Fatalf("Failed to count drafts: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 drafts remaining, got %d", count)
	}
}

func TestDraftStorage_DeleteByJob(t *testing.T) {
	storage := NewDraftStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()

	for _, d := range []*models.Draft{
		{JobID: "job_1", URL: "https://example.com/a"},
		{JobID: "job_1", URL: "https://example.com/b"},
		{JobID: "job_2", URL: "https://example.com/c"},
	} {
		if err := storage.SaveDraft(ctx, d); err != nil {
			t.Fatalf("Failed to save draft: %v", err)
		}
	}

	if err := storage.DeleteByJob(ctx, "job_1"); err != nil {
		t.Fatalf("Failed to delete drafts by job: %v", err)
	}

	count, err := storage.CountDrafts(ctx)
	if err != nil {
		t.Fatalf("Failed to count drafts: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 draft remaining, got %d", count)
	}
}

func TestHistoryStorage_AppendAndList(t *testing.T) {
	storage := NewHistoryStorage(newTestDB(t), arbor.NewLogger())
	ctx := context.Background()
	now := time.Now()

	entries := []*models.HistoryEntry{
		{ProjectID: "p1", JobID: "job_1", URL: "https://example.com/a", Result: &models.Result{URL: "https://example.com/a"}, RecordedAt: now.Add(-time.Minute)},
		{ProjectID: "p1", JobID: "job_1", URL: "https://example.com/b", Result: &models.Result{URL: "https://example.com/b"}, RecordedAt: now},
		{ProjectID: "p2", JobID: "job_2", URL: "https://example.com/a", IsError: true, RecordedAt: now},
	}
	for _, e := range entries {
		if err := storage.AppendEntry(ctx, e); err != nil {
			t.Fatalf("Failed to append entry: %v", err)
		}
	}

	p1, err := storage.ListByProject(ctx, "p1", "", 0)
	if err != nil {
		t.Fatalf("Failed to list history: %v", err)
	}
	if len(p1) != 2 {
		t.Fatalf("Expected 2 entries for p1, got %d", len(p1))
	}
	if p1[0].URL != "https://example.com/b" {
		t.Errorf("Expected newest entry first, got %s", p1[0].URL)
	}

	filtered, err := storage.ListByProject(ctx, "p1", "https://example.com/a", 0)
	if err != nil {
		t.Fatalf("Failed to list filtered history: %v", err)
	}
	if len(filtered) != 1 {
		t.Fatalf("Expected 1 filtered entry, got %d", len(filtered))
	}

	count, err := storage.CountEntries(ctx)
	if err != nil {
		t.Fatalf("Failed to count entries: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 entries, got %d", count)
	}
}
