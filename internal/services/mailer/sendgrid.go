// -----------------------------------------------------------------------
// SendGrid Mailer - v3 mail/send JSON API
// -----------------------------------------------------------------------

package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/central-rogues/internal/interfaces"
	"github.com/ternarybob/central-rogues/internal/models"
)

const (
	// DefaultSendGridURL is the SendGrid API host
	DefaultSendGridURL = "https://api.sendgrid.com"

	sendGridSendPath = "/v3/mail/send"
)

// SendGridError represents a rejected send (bad key, rejected recipient, quota)
type SendGridError struct {
	StatusCode int
	Body       string
}

func (e *SendGridError) Error() string {
	return fmt.Sprintf("sendgrid error: %s (status: %d)", e.Body, e.StatusCode)
}

// SendGrid sends mail through the SendGrid v3 API
type SendGrid struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
}

// NewSendGrid creates a SendGrid mailer. baseURL may be empty for the public API.
func NewSendGrid(apiKey, baseURL string, httpClient *http.Client, logger arbor.ILogger) *SendGrid {
	if baseURL == "" {
		baseURL = DefaultSendGridURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &SendGrid{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

type sendGridAddress struct {
	Email string `json:"email"`
}

type sendGridPersonalization struct {
	To []sendGridAddress `json:"to"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridRequest struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridAddress           `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
}

// Name identifies the transport in logs
func (s *SendGrid) Name() string {
	return "sendgrid"
}

// Send posts the message; any 2xx (normally 202 Accepted) is success
func (s *SendGrid) Send(ctx context.Context, msg models.EmailMessage) error {
	if s.apiKey == "" {
		return fmt.Errorf("sendgrid API key not configured")
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients")
	}

	payload := sendGridRequest{
		From:    sendGridAddress{Email: msg.From},
		Subject: msg.Subject,
	}
	to := make([]sendGridAddress, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, sendGridAddress{Email: addr})
	}
	payload.Personalizations = []sendGridPersonalization{{To: to}}

	// SendGrid requires text/plain before text/html
	if msg.Text != "" {
		payload.Content = append(payload.Content, sendGridContent{Type: "text/plain", Value: msg.Text})
	}
	payload.Content = append(payload.Content, sendGridContent{Type: "text/html", Value: msg.HTML})

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+sendGridSendPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &SendGridError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	s.logger.Info().
		Int("status", resp.StatusCode).
		Strs("to", msg.To).
		Msg("SendGrid accepted report email")

	return nil
}

var _ interfaces.Mailer = (*SendGrid)(nil)
