package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/geoscope/internal/common"
	"github.com/ternarybob/geoscope/internal/interfaces"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	job     interfaces.JobStorage
	draft   interfaces.DraftStorage
	history interfaces.HistoryStorage
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		job:     NewJobStorage(db, logger),
		draft:   NewDraftStorage(db, logger),
		history: NewHistoryStorage(db, logger),
		logger:  logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// JobStorage returns the audit job storage interface
func (m *Manager) JobStorage() interfaces.JobStorage {
	return m.job
}

// DraftStorage returns the draft storage interface
func (m *Manager) DraftStorage() interfaces.DraftStorage {
	return m.draft
}

// HistoryStorage returns the history storage interface
func (m *Manager) HistoryStorage() interfaces.HistoryStorage {
	return m.history
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
