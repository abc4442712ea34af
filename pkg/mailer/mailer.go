package mailer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openlearn/lms-api/pkg/config"
)

// Message is a fully rendered email ready for delivery.
type Message struct {
	ToName      string
	ToEmail     string
	Subject     string
	TextContent string
	HTMLContent string
}

// Mailer delivers rendered email messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New selects a mailer implementation based on configuration.
func New(cfg config.MailConfig, logger *zap.Logger) (Mailer, error) {
	switch cfg.Provider {
	case "sendgrid":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("sendgrid provider requires MAIL_API_KEY")
		}
		return NewSendgridMailer(cfg), nil
	case "console", "":
		return NewConsoleMailer(logger), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}
