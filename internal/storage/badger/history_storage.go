package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/geoscope/internal/interfaces"
	"github.com/ternarybob/geoscope/internal/models"
)

// HistoryStorage implements the HistoryStorage interface for Badger.
// Entries are append-only; IDs come from the store's sequence.
type HistoryStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewHistoryStorage creates a new HistoryStorage instance
func NewHistoryStorage(db *BadgerDB, logger arbor.ILogger) interfaces.HistoryStorage {
	return &HistoryStorage{
		db:     db,
		logger: logger,
	}
}

func (s *HistoryStorage) AppendEntry(ctx context.Context, entry *models.HistoryEntry) error {
	if entry == nil || entry.URL == "" {
		return fmt.Errorf("%w: history entry URL is required", models.ErrInvalidInput)
	}

	if err := s.db.Store().Insert(badgerhold.NextSequence(), entry); err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return nil
}

func (s *HistoryStorage) ListByProject(ctx context.Context, projectID, url string, limit int) ([]*models.HistoryEntry, error) {
	query := badgerhold.Where("ProjectID").Eq(projectID).SortBy("RecordedAt").Reverse()
	if url != "" {
		query = query.And("URL").Eq(url)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var entries []models.HistoryEntry
	if err := s.db.Store().Find(&entries, query); err != nil {
		return nil, fmt.Errorf("failed to list history for project %s: %w", projectID, err)
	}

	result := make([]*models.HistoryEntry, len(entries))
	for i := range entries {
		result[i] = &entries[i]
	}
	return result, nil
}

func (s *HistoryStorage) CountEntries(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.HistoryEntry{}, badgerhold.Where("ID").Ge(uint64(0)))
	if err != nil {
		return 0, fmt.Errorf("failed to count history entries: %w", err)
	}
	return int(count), nil
}
