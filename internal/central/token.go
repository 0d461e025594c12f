package central

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2"

	"github.com/ternarybob/central-rogues/internal/interfaces"
	"github.com/ternarybob/central-rogues/internal/models"
)

const (
	// TokenPath is the Central OAuth2 token endpoint.
	TokenPath = "/oauth2/token"

	// DefaultTokenMargin is how long before expiry a cached token is refreshed.
	DefaultTokenMargin = 5 * time.Minute
)

// Clock abstracts wall-clock time for expiry checks
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the real time
var SystemClock Clock = ClockFunc(time.Now)

// TokenManager owns the access/refresh token lifecycle for one Central account
type TokenManager struct {
	oauth      *oauth2.Config
	httpClient *http.Client
	clock      Clock
	margin     time.Duration
	storage    interfaces.TokenStorage
	logger     arbor.ILogger
}

// TokenOption configures the TokenManager.
type TokenOption func(*TokenManager)

// WithTokenHTTPClient sets the HTTP client used for the token endpoint.
func WithTokenHTTPClient(httpClient *http.Client) TokenOption {
	return func(m *TokenManager) {
		m.httpClient = httpClient
	}
}

// WithClock sets the time source.
func WithClock(clock Clock) TokenOption {
	return func(m *TokenManager) {
		m.clock = clock
	}
}

// WithTokenMargin sets the safety margin before expiry.
func WithTokenMargin(margin time.Duration) TokenOption {
	return func(m *TokenManager) {
		m.margin = margin
	}
}

// WithTokenStorage enables the token cache.
func WithTokenStorage(storage interfaces.TokenStorage) TokenOption {
	return func(m *TokenManager) {
		m.storage = storage
	}
}

// WithTokenLogger sets a logger.
func WithTokenLogger(logger arbor.ILogger) TokenOption {
	return func(m *TokenManager) {
		m.logger = logger
	}
}

// NewTokenManager creates a token manager for the Central gateway at baseURL
func NewTokenManager(baseURL, clientID, clientSecret string, opts ...TokenOption) *TokenManager {
	m := &TokenManager{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  strings.TrimRight(baseURL, "/") + TokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: &http.Client{Timeout: DefaultTimeout},
		clock:      SystemClock,
		margin:     DefaultTokenMargin,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = arbor.NewLogger()
	}

	return m
}

// GetAccessToken returns a usable access token and the credentials as they stand
// afterwards. A cached token that is still valid is returned without any network
// call; otherwise the refresh-token grant is performed and the rotated tokens are
// returned (and persisted when a token cache is configured).
//
// When the cached refresh token is rejected, the cache entry is deleted and the grant
// is retried once with the configured refresh token.
func (m *TokenManager) GetAccessToken(ctx context.Context, configured models.Credentials) (string, models.Credentials, error) {
	seed := RefreshTokenFingerprint(configured.RefreshToken)
	creds, usedCachedRefresh := m.mergeCached(ctx, configured, seed)

	if m.isValid(creds) {
		m.logger.Debug().
			Str("expires", creds.AccessTokenExpiry.Format(time.RFC3339)).
			Msg("Using cached access token")
		return creds.AccessToken, creds, nil
	}

	updated, err := m.refresh(ctx, creds)
	if err != nil && usedCachedRefresh && configured.RefreshToken != "" {
		m.logger.Warn().Err(err).Msg("Cached refresh token rejected, retrying with configured refresh token")
		m.forget(ctx, configured.ClientID)
		creds = configured
		updated, err = m.refresh(ctx, configured)
	}
	if err != nil {
		return "", creds, err
	}

	if err := m.persist(ctx, updated, seed); err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist rotated tokens")
	}

	return updated.AccessToken, updated, nil
}

// RefreshTokenFingerprint identifies a refresh token without storing it; empty for an empty token
func RefreshTokenFingerprint(refreshToken string) string {
	if refreshToken == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(refreshToken))
	return hex.EncodeToString(sum[:])
}

func (m *TokenManager) isValid(creds models.Credentials) bool {
	if !creds.HasAccessToken() {
		return false
	}
	return m.clock.Now().Before(creds.AccessTokenExpiry.Add(-m.margin))
}

// refresh performs the OAuth2 refresh-token grant
func (m *TokenManager) refresh(ctx context.Context, creds models.Credentials) (models.Credentials, error) {
	if creds.RefreshToken == "" {
		return creds, &AuthError{Message: "no refresh token configured"}
	}

	m.logger.Info().Str("client_id", creds.ClientID).Msg("Refreshing Central access token")

	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	requestedAt := m.clock.Now()

	source := m.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: creds.RefreshToken})
	token, err := source.Token()
	if err != nil {
		return creds, toAuthError(err)
	}
	if token.AccessToken == "" {
		return creds, &AuthError{Message: "token endpoint returned no access token"}
	}

	updated := creds
	updated.AccessToken = token.AccessToken
	updated.AccessTokenExpiry = tokenExpiry(token, requestedAt)
	if token.RefreshToken != "" && token.RefreshToken != creds.RefreshToken {
		updated.RefreshToken = token.RefreshToken
		m.logger.Info().Msg("Central rotated the refresh token")
	}

	m.logger.Info().
		Str("expires", updated.AccessTokenExpiry.Format(time.RFC3339)).
		Msg("Central access token refreshed")

	return updated, nil
}

// tokenExpiry prefers expires_in measured against the injected clock, falling
// back to the library-computed expiry.
func tokenExpiry(token *oauth2.Token, requestedAt time.Time) time.Time {
	switch v := token.Extra("expires_in").(type) {
	case float64:
		if v > 0 {
			return requestedAt.Add(time.Duration(v) * time.Second)
		}
	case string:
		if d, err := time.ParseDuration(v + "s"); err == nil && d > 0 {
			return requestedAt.Add(d)
		}
	}
	return token.Expiry
}

func toAuthError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		message := strings.TrimSpace(retrieveErr.ErrorDescription)
		if message == "" {
			message = strings.TrimSpace(string(retrieveErr.Body))
		}
		if message == "" {
			message = "refresh token rejected"
		}
		return &AuthError{StatusCode: status, Message: message, Err: err}
	}
	return &AuthError{Message: "token request failed", Err: err}
}

// mergeCached prefers the cached tokens over configured ones: once Central rotates
// the refresh token, the configured one is no longer valid. An entry seeded from a
// different configured refresh token is ignored. The bool reports whether the
// refresh token now comes from the cache.
func (m *TokenManager) mergeCached(ctx context.Context, creds models.Credentials, seed string) (models.Credentials, bool) {
	if m.storage == nil {
		return creds, false
	}

	cached, err := m.storage.LoadToken(ctx, creds.ClientID)
	if err != nil {
		if !errors.Is(err, interfaces.ErrTokenNotFound) {
			m.logger.Warn().Err(err).Msg("Failed to read token cache")
		}
		return creds, false
	}

	if seed != "" && cached.SeedHash != seed {
		m.logger.Info().Msg("Configured refresh token changed, ignoring token cache")
		return creds, false
	}

	usedCachedRefresh := false
	if cached.RefreshToken != "" && cached.RefreshToken != creds.RefreshToken {
		creds.RefreshToken = cached.RefreshToken
		usedCachedRefresh = true
	}
	if cached.AccessToken != "" && cached.Expiry.After(creds.AccessTokenExpiry) {
		creds.AccessToken = cached.AccessToken
		creds.AccessTokenExpiry = cached.Expiry
	}
	return creds, usedCachedRefresh
}

// forget drops the cache entry for clientID
func (m *TokenManager) forget(ctx context.Context, clientID string) {
	if m.storage == nil {
		return
	}
	if err := m.storage.DeleteToken(ctx, clientID); err != nil && !errors.Is(err, interfaces.ErrTokenNotFound) {
		m.logger.Warn().Err(err).Msg("Failed to clear token cache")
	}
}

func (m *TokenManager) persist(ctx context.Context, creds models.Credentials, seed string) error {
	if m.storage == nil {
		return nil
	}
	err := m.storage.SaveToken(ctx, &models.CachedToken{
		ClientID:     creds.ClientID,
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		SeedHash:     seed,
		Expiry:       creds.AccessTokenExpiry,
		UpdatedAt:    m.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}
