package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/geoscope/internal/interfaces"
	"github.com/ternarybob/geoscope/internal/models"
)

// DraftStorage implements the DraftStorage interface for Badger. Drafts are
// keyed by (job ID, URL) so regeneration can look up a single page's raw
// schema without scanning the job.
type DraftStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDraftStorage creates a new DraftStorage instance
func NewDraftStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DraftStorage {
	return &DraftStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DraftStorage) SaveDraft(ctx context.Context, draft *models.Draft) error {
	if draft == nil || draft.JobID == "" || draft.URL == "" {
		return fmt.Errorf("%w: draft job ID and URL are required", models.ErrInvalidInput)
	}
	draft.Key = models.DraftKey(draft.JobID, draft.URL)

	if err := s.db.Store().Upsert(draft.Key, draft); err != nil {
		return fmt.Errorf("failed to save draft %s: %w", draft.Key, err)
	}
	return nil
}

func (s *DraftStorage) GetDraft(ctx context.Context, jobID, url string) (*models.Draft, error) {
	var draft models.Draft
	key := models.DraftKey(jobID, url)
	if err := s.db.Store().Get(key, &draft); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: draft %s", models.ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to get draft %s: %w", key, err)
	}
	return &draft, nil
}

func (s *DraftStorage) DeleteByJob(ctx context.Context, jobID string) error {
	if err := s.db.Store().DeleteMatching(&models.Draft{}, badgerhold.Where("JobID").Eq(jobID)); err != nil {
		return fmt.Errorf("failed to delete drafts for job %s: %w", jobID, err)
	}
	return nil
}

// DeleteExpired removes drafts whose expiry has passed. Drafts with a zero
// ExpiresAt belong to live jobs and are never swept.
func (s *DraftStorage) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	var expired []models.Draft
	query := badgerhold.Where("ExpiresAt").Ne(time.Time{}).And("ExpiresAt").Lt(now)
	if err := s.db.Store().Find(&expired, query); err != nil {
		return 0, fmt.Errorf("failed to find expired drafts: %w", err)
	}

	deleted := 0
	for i := range expired {
		if err := s.db.Store().Delete(expired[i].Key, &models.Draft{}); err != nil {
			s.logger.Warn().Err(err).Str("key", expired[i].Key).Msg("Failed to delete expired draft")
			continue
		}
		deleted++
	}
	return deleted, nil
}

func (s *DraftStorage) CountDrafts(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Draft{}, badgerhold.Where("Key").Ne(""))
	if err != nil {
		return 0, fmt.Errorf("failed to count drafts: %w", err)
	}
	return int(count), nil
}
