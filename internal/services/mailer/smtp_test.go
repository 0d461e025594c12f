package mailer

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestBuildMIME_Alternatives(t *testing.T) {
	date := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	raw, err := BuildMIME(testMessage(), date)
	require.NoError(t, err)

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Wireless Rogue AP Alert", subject)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 2)
	assert.Equal(t, "b@example.com", to[1].Address)

	sent, err := mr.Header.Date()
	require.NoError(t, err)
	assert.True(t, date.Equal(sent))

	bodies := map[string]string{}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)

		header, ok := part.Header.(*mail.InlineHeader)
		require.True(t, ok, "expected inline parts only")
		contentType, _, err := header.ContentType()
		require.NoError(t, err)

		body, err := io.ReadAll(part.Body)
		require.NoError(t, err)
		bodies[contentType] = string(body)
	}

	assert.Equal(t, "report", bodies["text/plain"])
	assert.Equal(t, "<p>report</p>", bodies["text/html"])
}

func TestBuildMIME_InvalidAddress(t *testing.T) {
	msg := testMessage()
	msg.To = []string{"not an address"}

	_, err := BuildMIME(msg, time.Now())
	assert.Error(t, err)
}

func TestSMTP_RequiresHost(t *testing.T) {
	s := NewSMTP(SMTPConfig{}, arbor.NewLogger())
	assert.Equal(t, 25, s.config.Port)
	assert.Error(t, s.Send(context.Background(), testMessage()))
}
