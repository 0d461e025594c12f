// Package central provides a client for the Aruba Central REST API: OAuth2 token
// refresh and the RAPIDS rogue/suspect access point listings.
package central

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 5

	// DefaultPageLimit is the RAPIDS page size.
	DefaultPageLimit = 80

	// DefaultRetryInterval is the first backoff interval when retries are enabled.
	DefaultRetryInterval = 500 * time.Millisecond

	maxErrorBody = 4096
)

// Client is an Aruba Central API client.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	logger        arbor.ILogger
	limiter       *rate.Limiter
	pageLimit     int
	maxRetries    int
	retryInterval time.Duration
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithPageLimit sets the number of records requested per page.
func WithPageLimit(limit int) ClientOption {
	return func(c *Client) {
		if limit > 0 {
			c.pageLimit = limit
		}
	}
}

// WithRetry enables bounded exponential backoff for transport errors, 429 and 5xx.
// maxRetries of 0 disables retry.
func WithRetry(maxRetries int, initialInterval time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
		if initialInterval > 0 {
			c.retryInterval = initialInterval
		}
	}
}

// NewClient creates a new Central API client for baseURL
// (e.g. https://apigw-prod2.central.arubanetworks.com).
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter:       rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		pageLimit:     DefaultPageLimit,
		retryInterval: DefaultRetryInterval,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = arbor.NewLogger()
	}

	return c
}

// BaseURL returns the API gateway URL the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the underlying HTTP client
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// get performs an authenticated GET and returns the response body.
func (c *Client) get(ctx context.Context, accessToken, path string, params url.Values) ([]byte, error) {
	if c.maxRetries <= 0 {
		return c.getOnce(ctx, accessToken, path, params)
	}

	var body []byte
	operation := func() error {
		var err error
		body, err = c.getOnce(ctx, accessToken, path, params)
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	retryPolicy := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		c.logger.Warn().Err(err).Str("endpoint", path).Str("wait", wait.String()).Msg("Central request failed, retrying")
	}

	if err := backoff.RetryNotify(operation, retryPolicy, notify); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) getOnce(ctx context.Context, accessToken, path string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Endpoint: path, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("url", c.baseURL+path).
		Str("offset", params.Get("offset")).
		Msg("Central API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Endpoint: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Endpoint: path, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	return body, nil
}

func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}
