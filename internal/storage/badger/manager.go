package badger

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/central-rogues/internal/common"
	"github.com/ternarybob/central-rogues/internal/interfaces"
)

// Manager owns the Badger database and the storages built on it
type Manager struct {
	db     *BadgerDB
	tokens interfaces.TokenStorage
	logger arbor.ILogger
}

// NewManager opens the database at config.Path and wires the token storage
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		tokens: NewTokenStorage(db, logger),
		logger: logger,
	}

	logger.Debug().Str("path", config.Path).Msg("Badger token cache initialized")

	return manager, nil
}

// TokenStorage returns the token cache
func (m *Manager) TokenStorage() interfaces.TokenStorage {
	return m.tokens
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		err := m.db.Close()
		m.db = nil
		return err
	}
	return nil
}
