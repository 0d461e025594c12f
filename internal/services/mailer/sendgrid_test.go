package mailer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/central-rogues/internal/models"
)

func testMessage() models.EmailMessage {
	return models.EmailMessage{
		From:    "noc@example.com",
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "Wireless Rogue AP Alert",
		HTML:    "<p>report</p>",
		Text:    "report",
	}
}

func TestSendGrid_PostsMessage(t *testing.T) {
	var got sendGridRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v3/mail/send", r.URL.Path)
		assert.Equal(t, "Bearer SG.key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	sg := NewSendGrid("SG.key", server.URL, server.Client(), arbor.NewLogger())

	require.NoError(t, sg.Send(context.Background(), testMessage()))

	assert.Equal(t, "noc@example.com", got.From.Email)
	assert.Equal(t, "Wireless Rogue AP Alert", got.Subject)
	require.Len(t, got.Personalizations, 1)
	assert.Equal(t, []sendGridAddress{{Email: "a@example.com"}, {Email: "b@example.com"}}, got.Personalizations[0].To)
	require.Len(t, got.Content, 2)
	assert.Equal(t, sendGridContent{Type: "text/plain", Value: "report"}, got.Content[0])
	assert.Equal(t, sendGridContent{Type: "text/html", Value: "<p>report</p>"}, got.Content[1])
}

func TestSendGrid_HTMLOnly(t *testing.T) {
	var got sendGridRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	msg := testMessage()
	msg.Text = ""

	require.NoError(t, NewSendGrid("SG.key", server.URL, server.Client(), arbor.NewLogger()).Send(context.Background(), msg))
	require.Len(t, got.Content, 1)
	assert.Equal(t, "text/html", got.Content[0].Type)
}

func TestSendGrid_RejectedKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"errors":[{"message":"The provided authorization grant is invalid"}]}`)
	}))
	defer server.Close()

	err := NewSendGrid("SG.bad", server.URL, server.Client(), arbor.NewLogger()).Send(context.Background(), testMessage())

	var sgErr *SendGridError
	require.ErrorAs(t, err, &sgErr)
	assert.Equal(t, http.StatusUnauthorized, sgErr.StatusCode)
	assert.Contains(t, sgErr.Body, "authorization grant is invalid")
}

func TestSendGrid_RequiresKeyAndRecipients(t *testing.T) {
	sg := NewSendGrid("", "", nil, arbor.NewLogger())
	assert.Error(t, sg.Send(context.Background(), testMessage()))

	sg = NewSendGrid("SG.key", "", nil, arbor.NewLogger())
	msg := testMessage()
	msg.To = nil
	assert.Error(t, sg.Send(context.Background(), msg))
}
