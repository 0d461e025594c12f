// -----------------------------------------------------------------------
// SMTP Mailer - relay delivery with a multipart/alternative body
// -----------------------------------------------------------------------

package mailer

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/central-rogues/internal/interfaces"
	"github.com/ternarybob/central-rogues/internal/models"
)

// SMTPConfig holds relay settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string // Empty disables AUTH (open internal relay)
	Password string
	UseTLS   bool // Implicit TLS on connect, falling back to STARTTLS
}

// SMTP sends mail through an SMTP relay
type SMTP struct {
	config SMTPConfig
	clock  func() time.Time
	logger arbor.ILogger
}

// NewSMTP creates an SMTP mailer
func NewSMTP(config SMTPConfig, logger arbor.ILogger) *SMTP {
	if config.Port == 0 {
		config.Port = 25
	}
	return &SMTP{
		config: config,
		clock:  time.Now,
		logger: logger,
	}
}

// Name identifies the transport in logs
func (s *SMTP) Name() string {
	return "smtp"
}

// Send delivers the message to every recipient
func (s *SMTP) Send(ctx context.Context, msg models.EmailMessage) error {
	if s.config.Host == "" {
		return fmt.Errorf("SMTP host not configured")
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("no recipients")
	}

	raw, err := BuildMIME(msg, s.clock())
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	var auth smtp.Auth
	if s.config.Username != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	if s.config.UseTLS {
		err = s.sendWithTLS(addr, auth, msg.From, msg.To, raw)
	} else {
		err = smtp.SendMail(addr, auth, msg.From, msg.To, raw)
	}
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("host", s.config.Host).
		Strs("to", msg.To).
		Msg("Report email sent via SMTP")
	return nil
}

// BuildMIME assembles an RFC 5322 message with text and HTML alternatives
func BuildMIME(msg models.EmailMessage, date time.Time) ([]byte, error) {
	from, err := mail.ParseAddress(msg.From)
	if err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", msg.From, err)
	}
	to := make([]*mail.Address, 0, len(msg.To))
	for _, addr := range msg.To {
		parsed, err := mail.ParseAddress(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid recipient %q: %w", addr, err)
		}
		to = append(to, parsed)
	}

	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{from})
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create inline part: %w", err)
	}

	if msg.Text != "" {
		if err := writePart(tw, "text/plain", msg.Text); err != nil {
			return nil, err
		}
	}
	if err := writePart(tw, "text/html", msg.HTML); err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close inline part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message: %w", err)
	}

	return buf.Bytes(), nil
}

func writePart(tw *mail.InlineWriter, contentType, body string) error {
	var ph mail.InlineHeader
	ph.SetContentType(contentType, map[string]string{"charset": "utf-8"})
	w, err := tw.CreatePart(ph)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return fmt.Errorf("failed to write %s part: %w", contentType, err)
	}
	return w.Close()
}

// sendWithTLS uses implicit TLS, falling back to STARTTLS when the TLS dial fails
func (s *SMTP) sendWithTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	tlsConfig := &tls.Config{ServerName: s.config.Host}

	conn, err := tls.Dial("tcp", addr, tlsConfig)
	if err != nil {
		return s.sendWithSTARTTLS(addr, auth, from, to, msg, tlsConfig)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer client.Close()

	return transmit(client, auth, from, to, msg)
}

func (s *SMTP) sendWithSTARTTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte, tlsConfig *tls.Config) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer client.Close()

	if err := client.StartTLS(tlsConfig); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}

	return transmit(client, auth, from, to, msg)
}

func transmit(client *smtp.Client, auth smtp.Auth, from string, to []string, msg []byte) error {
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("failed to set mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("recipient %s rejected: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	return client.Quit()
}

var _ interfaces.Mailer = (*SMTP)(nil)
