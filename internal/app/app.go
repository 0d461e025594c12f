package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/central-rogues/internal/central"
	"github.com/ternarybob/central-rogues/internal/common"
	"github.com/ternarybob/central-rogues/internal/delivery"
	"github.com/ternarybob/central-rogues/internal/httpclient"
	"github.com/ternarybob/central-rogues/internal/interfaces"
	"github.com/ternarybob/central-rogues/internal/models"
	"github.com/ternarybob/central-rogues/internal/report"
	"github.com/ternarybob/central-rogues/internal/rogues"
	"github.com/ternarybob/central-rogues/internal/services/mailer"
	"github.com/ternarybob/central-rogues/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config  *common.Config
	Account *common.AccountConfig
	Logger  arbor.ILogger

	Central  *central.Client
	Tokens   *central.TokenManager
	Delivery *delivery.Service

	TokenStorage interfaces.TokenStorage
	storage      *badger.Manager

	httpClient *http.Client
	clock      central.Clock
	mailer     interfaces.Mailer
}

// Option customises App construction, mainly for tests
type Option func(*App)

// WithHTTPClient sets the HTTP client used for Central and SendGrid
func WithHTTPClient(client *http.Client) Option {
	return func(a *App) {
		a.httpClient = client
	}
}

// WithClock sets the time source for token expiry and report timestamps
func WithClock(clock central.Clock) Option {
	return func(a *App) {
		a.clock = clock
	}
}

// WithMailer replaces the transport selected by delivery.mode
func WithMailer(m interfaces.Mailer) Option {
	return func(a *App) {
		a.mailer = m
	}
}

// WithTokenStorage replaces the Badger token cache
func WithTokenStorage(storage interfaces.TokenStorage) Option {
	return func(a *App) {
		a.TokenStorage = storage
	}
}

// RunResult summarises one report run
type RunResult struct {
	Report   models.Report
	HTML     string
	Delivery delivery.Result
}

// New wires the components for one run. Close must be called to release the token cache.
func New(cfg *common.Config, account *common.AccountConfig, logger arbor.ILogger, opts ...Option) (*App, error) {
	a := &App{
		Config:  cfg,
		Account: account,
		Logger:  logger,
		clock:   central.SystemClock,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.httpClient == nil {
		a.httpClient = httpclient.NewDefaultHTTPClient(cfg.RequestTimeout(), "central-rogues/"+common.GetVersion())
	}

	if err := a.initStorage(); err != nil {
		return nil, err
	}
	if err := a.initServices(); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) initStorage() error {
	if a.TokenStorage != nil || !a.Config.Storage.Badger.Enabled {
		return nil
	}

	manager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to open token cache: %w", err)
	}
	a.storage = manager
	a.TokenStorage = manager.TokenStorage()
	return nil
}

func (a *App) initServices() error {
	a.Central = central.NewClient(a.Account.BaseURL,
		central.WithHTTPClient(a.httpClient),
		central.WithLogger(a.Logger),
		central.WithRateLimit(a.Config.Central.RateLimit),
		central.WithPageLimit(a.Config.Central.PageLimit),
		central.WithRetry(a.Config.Central.MaxRetries, a.Config.RetryInterval()),
	)

	tokenOpts := []central.TokenOption{
		central.WithTokenHTTPClient(a.httpClient),
		central.WithClock(a.clock),
		central.WithTokenMargin(a.Config.TokenMargin()),
		central.WithTokenLogger(a.Logger),
	}
	if a.TokenStorage != nil {
		tokenOpts = append(tokenOpts, central.WithTokenStorage(a.TokenStorage))
	}
	a.Tokens = central.NewTokenManager(a.Account.BaseURL, a.Account.ClientID, a.Account.ClientSecret, tokenOpts...)

	if a.mailer == nil {
		switch a.Config.Delivery.Mode {
		case common.DeliveryModeSendGrid:
			a.mailer = mailer.NewSendGrid(a.Account.SendGridAPIKey, a.Config.Delivery.SendGridURL, a.httpClient, a.Logger)
		case common.DeliveryModeSMTP:
			a.mailer = mailer.NewSMTP(mailer.SMTPConfig{
				Host:     a.Account.SMTP.Host,
				Port:     a.Account.SMTP.Port,
				Username: a.Account.SMTP.Username,
				Password: a.Account.SMTP.Password,
				UseTLS:   a.Account.SMTP.UseTLS,
			}, a.Logger)
		}
	}

	a.Delivery = delivery.NewService(a.mailer, a.Account.FromAddress, a.Account.Subject, a.Config.FallbackPath(), a.Logger)
	return nil
}

// Collection is the fetched and filtered data of a run
type Collection struct {
	Credentials models.Credentials
	All         []models.RogueRecord
	Rogues      []models.RogueRecord
}

// Collect authenticates, fetches every configured RAPIDS list and applies the allow-list
func (a *App) Collect(ctx context.Context) (*Collection, error) {
	accessToken, creds, err := a.Tokens.GetAccessToken(ctx, a.Account.Credentials())
	if err != nil {
		return nil, err
	}

	all, err := a.Central.FetchRogues(ctx, accessToken, creds.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rogue APs: %w", err)
	}

	if a.Config.Central.IncludeSuspects {
		suspects, err := a.Central.FetchSuspects(ctx, accessToken, creds.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch suspected rogue APs: %w", err)
		}
		all = append(all, suspects...)
	}

	filtered := rogues.Filter(all, rogues.NewAllowList(a.Account.CheckSSIDs))

	a.Logger.Info().
		Int("inspected", len(all)).
		Int("reported", len(filtered)).
		Int("allowed_ssids", len(a.Account.CheckSSIDs)).
		Msg("Rogue APs filtered")

	return &Collection{Credentials: creds, All: all, Rogues: filtered}, nil
}

// Run executes the full pipeline: token, fetch, filter, render, deliver.
// A *delivery.DeliveryError is returned after the report has been written locally.
func (a *App) Run(ctx context.Context) (*RunResult, error) {
	collection, err := a.Collect(ctx)
	if err != nil {
		return nil, err
	}

	rpt := models.Report{
		RunID:       common.NewRunID(),
		Title:       a.Config.Report.Title,
		GeneratedAt: a.clock.Now(),
		Inspected:   len(collection.All),
		Records:     collection.Rogues,
	}
	if a.Config.Report.IncludeAll {
		rpt.All = collection.All
	}

	html, err := report.Render(rpt)
	if err != nil {
		return nil, err
	}

	doc := delivery.Document{HTML: html}
	dest := delivery.Destination{Path: a.Config.FallbackPath()}
	if a.Config.Delivery.Mode != common.DeliveryModeFile {
		dest.Recipients = a.Account.ToAddresses
		text, err := report.RenderMarkdown(html)
		if err != nil {
			a.Logger.Warn().Err(err).Msg("Plain-text alternative unavailable, sending HTML only")
		} else {
			doc.Text = text
		}
	}

	result, err := a.Delivery.Deliver(ctx, doc, dest)
	runResult := &RunResult{Report: rpt, HTML: html, Delivery: result}
	if err != nil {
		return runResult, err
	}

	a.Logger.Info().
		Str("run_id", rpt.RunID).
		Int("rogues", rpt.Count()).
		Str("detail", result.Detail).
		Msg("Rogue report delivered")

	return runResult, nil
}

// TokenStatus describes the cached token without exposing its value
type TokenStatus struct {
	Cached          bool
	HasAccessToken  bool
	HasRefreshToken bool
	Expiry          string
	UpdatedAt       string
	// ConfiguredSeed is false when the entry descends from a different configured refresh token
	ConfiguredSeed bool
}

// TokenStatus reports what the token cache holds for the configured client
func (a *App) TokenStatus(ctx context.Context) (TokenStatus, error) {
	if a.TokenStorage == nil {
		return TokenStatus{}, fmt.Errorf("token cache is disabled")
	}
	token, err := a.TokenStorage.LoadToken(ctx, a.Account.ClientID)
	if errors.Is(err, interfaces.ErrTokenNotFound) {
		return TokenStatus{}, nil
	}
	if err != nil {
		return TokenStatus{}, err
	}
	return TokenStatus{
		Cached:          true,
		HasAccessToken:  token.AccessToken != "",
		HasRefreshToken: token.RefreshToken != "",
		Expiry:          report.FormatTime(token.Expiry),
		UpdatedAt:       report.FormatTime(token.UpdatedAt),
		ConfiguredSeed:  token.SeedHash == central.RefreshTokenFingerprint(a.Account.RefreshToken),
	}, nil
}

// ResetTokens drops the cached tokens so the next run starts from the configured refresh token.
// It reports whether an entry was present.
func (a *App) ResetTokens(ctx context.Context) (bool, error) {
	if a.TokenStorage == nil {
		return false, fmt.Errorf("token cache is disabled")
	}
	if _, err := a.TokenStorage.LoadToken(ctx, a.Account.ClientID); errors.Is(err, interfaces.ErrTokenNotFound) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if err := a.TokenStorage.DeleteToken(ctx, a.Account.ClientID); err != nil {
		return false, fmt.Errorf("failed to reset token cache: %w", err)
	}
	a.Logger.Info().Str("client_id", a.Account.ClientID).Msg("Token cache reset")
	return true, nil
}

// Close releases the token cache
func (a *App) Close() error {
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close token cache")
			return err
		}
		a.storage = nil
	}
	return nil
}
