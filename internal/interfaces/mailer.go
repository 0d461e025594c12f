package interfaces

import (
	"context"

	"github.com/ternarybob/central-rogues/internal/models"
)

// Mailer sends a rendered report through an email transport
type Mailer interface {
	Send(ctx context.Context, msg models.EmailMessage) error
	Name() string
}
