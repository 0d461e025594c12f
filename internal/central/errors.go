package central

import (
	"fmt"
)

// AuthError represents a failed OAuth2 token refresh. It is fatal: the refresh token
// must be re-issued from the Central UI.
type AuthError struct {
	StatusCode int // 0 when no HTTP response was received
	Message    string
	Err        error
}

func (e *AuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("central auth error: %s (status: %d)", e.Message, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("central auth error: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("central auth error: %s", e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// APIError represents a non-success response from a Central API endpoint
type APIError struct {
	StatusCode int
	Body       string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("central API error: %s (status: %d, endpoint: %s)", e.Body, e.StatusCode, e.Endpoint)
}

// Retryable reports whether the status is worth another attempt
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// TransportError represents a network-level failure talking to Central
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("central transport error: %v (endpoint: %s)", e.Err, e.Endpoint)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
