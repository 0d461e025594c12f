package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/central-rogues/internal/interfaces"
	"github.com/ternarybob/central-rogues/internal/models"
)

// TokenStorage implements the TokenStorage interface for Badger
type TokenStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewTokenStorage creates a new TokenStorage instance
func NewTokenStorage(db *BadgerDB, logger arbor.ILogger) interfaces.TokenStorage {
	return &TokenStorage{
		db:     db,
		logger: logger,
	}
}

func normalizeClientID(clientID string) string {
	return strings.TrimSpace(clientID)
}

// LoadToken retrieves the cached token for a client ID
func (s *TokenStorage) LoadToken(ctx context.Context, clientID string) (*models.CachedToken, error) {
	key := normalizeClientID(clientID)
	var token models.CachedToken
	err := s.db.Store().Get(key, &token)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return &token, nil
}

// SaveToken upserts the token; badgerhold runs the write in one transaction
func (s *TokenStorage) SaveToken(ctx context.Context, token *models.CachedToken) error {
	if token == nil {
		return fmt.Errorf("token is nil")
	}
	key := normalizeClientID(token.ClientID)
	if key == "" {
		return fmt.Errorf("token has no client ID")
	}
	token.ClientID = key

	if err := s.db.Store().Upsert(key, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	s.logger.Debug().Str("client_id", key).Msg("Token cache updated")
	return nil
}

// DeleteToken removes the cached token for a client ID
func (s *TokenStorage) DeleteToken(ctx context.Context, clientID string) error {
	key := normalizeClientID(clientID)
	err := s.db.Store().Delete(key, &models.CachedToken{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return interfaces.ErrTokenNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
