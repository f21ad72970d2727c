// Package email sends workflow notification mail. Delivery is best-effort:
// Send returns an error for the caller to log, never to abort on.
package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
)

// Config holds SMTP sender configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Sender delivers notification emails over SMTP
type Sender struct {
	config *Config
	logger *slog.Logger
}

// NewSender creates a new SMTP sender
func NewSender(cfg *Config, logger *slog.Logger) *Sender {
	return &Sender{
		config: cfg,
		logger: logger,
	}
}

// Send delivers one plain-text message to the recipient.
func (s *Sender) Send(ctx context.Context, recipient, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(s.config.From); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(recipient); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(s.config.Port),
	}
	if s.config.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.config.User),
			mail.WithPassword(s.config.Password),
		)
	}

	client, err := mail.NewClient(s.config.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Debug("Notification email sent",
		slog.String("recipient", recipient),
	)

	return nil
}
