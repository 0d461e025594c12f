package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/central-rogues/internal/models"
)

// ErrTokenNotFound is returned when no cached token exists for a client ID
var ErrTokenNotFound = errors.New("token not found")

// TokenStorage persists rotated OAuth2 tokens between runs
type TokenStorage interface {
	// LoadToken returns the cached token for clientID or ErrTokenNotFound
	LoadToken(ctx context.Context, clientID string) (*models.CachedToken, error)

	// SaveToken overwrites the cached token in a single transaction
	SaveToken(ctx context.Context, token *models.CachedToken) error

	// DeleteToken removes the cached token for clientID
	DeleteToken(ctx context.Context, clientID string) error
}
