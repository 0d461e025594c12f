// Package delivery writes the rendered report to disk and hands it to an email transport.
package delivery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/central-rogues/internal/interfaces"
	"github.com/ternarybob/central-rogues/internal/models"
)

// DeliveryError reports a failed email send. The report is still on disk at Path.
type DeliveryError struct {
	Transport string
	Path      string
	Err       error
}

func (e *DeliveryError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("delivery via %s failed (report saved to %s): %v", e.Transport, e.Path, e.Err)
	}
	return fmt.Sprintf("delivery via %s failed: %v", e.Transport, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Destination is either a file path (file mode) or a recipient list (email mode)
type Destination struct {
	Path       string
	Recipients []string
}

// IsEmail reports whether the destination addresses people rather than a file
func (d Destination) IsEmail() bool {
	return len(d.Recipients) > 0
}

// Result describes the delivery outcome
type Result struct {
	Success bool
	Detail  string
	Path    string // Where the HTML was written, empty if nothing was written
}

// Document is the rendered report handed to Deliver
type Document struct {
	HTML string
	Text string // Optional plain-text alternative for email
}

// Service delivers rendered reports
type Service struct {
	mailer       interfaces.Mailer
	from         string
	subject      string
	fallbackPath string
	logger       arbor.ILogger
}

// NewService creates a delivery service. mailer may be nil when only file delivery is used.
// fallbackPath receives a copy of every emailed report.
func NewService(mailer interfaces.Mailer, from, subject, fallbackPath string, logger arbor.ILogger) *Service {
	return &Service{
		mailer:       mailer,
		from:         from,
		subject:      subject,
		fallbackPath: fallbackPath,
		logger:       logger,
	}
}

// Deliver writes or sends the document. In email mode the HTML is written to the
// fallback path before sending, so a mail failure never loses the report.
func (s *Service) Deliver(ctx context.Context, doc Document, dest Destination) (Result, error) {
	if !dest.IsEmail() {
		path := dest.Path
		if path == "" {
			path = s.fallbackPath
		}
		if err := WriteFileAtomic(path, []byte(doc.HTML)); err != nil {
			return Result{Detail: err.Error()}, &DeliveryError{Transport: "file", Err: err}
		}
		s.logger.Info().Str("path", path).Msg("Report written")
		return Result{Success: true, Detail: "written to " + path, Path: path}, nil
	}

	if s.mailer == nil {
		return Result{Detail: "no email transport configured"}, &DeliveryError{Transport: "email", Err: fmt.Errorf("no email transport configured")}
	}

	result := Result{}
	if s.fallbackPath != "" {
		if err := WriteFileAtomic(s.fallbackPath, []byte(doc.HTML)); err != nil {
			s.logger.Warn().Err(err).Str("path", s.fallbackPath).Msg("Failed to save local copy of report")
		} else {
			result.Path = s.fallbackPath
		}
	}

	msg := models.EmailMessage{
		From:    s.from,
		To:      dest.Recipients,
		Subject: s.subject,
		HTML:    doc.HTML,
		Text:    doc.Text,
	}

	s.logger.Info().
		Str("transport", s.mailer.Name()).
		Strs("to", dest.Recipients).
		Msg("Emailing rogue report")

	if err := s.mailer.Send(ctx, msg); err != nil {
		result.Detail = err.Error()
		return result, &DeliveryError{Transport: s.mailer.Name(), Path: result.Path, Err: err}
	}

	result.Success = true
	result.Detail = fmt.Sprintf("sent via %s to %s", s.mailer.Name(), strings.Join(dest.Recipients, ", "))
	return result, nil
}

// WriteFileAtomic writes data to a temp file in the target directory and renames it
// into place, so readers never see a partial report.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to set report permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move report into place: %w", err)
	}
	return nil
}
