// Package email renders and sends outbound email.
package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arena-wallet/internal/config"
)

// Message is a rendered email. Bcc keeps broadcast recipients hidden from
// one another.
type Message struct {
	To      []string
	Bcc     []string
	Subject string
	HTML    string
}

// Mailer delivers a message
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns the mailer for the configured provider
func New(cfg *config.EmailConfig, logger *slog.Logger) (Mailer, error) {
	switch cfg.Provider {
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, fmt.Errorf("email.smtp_host is required for the smtp provider")
		}
		return NewSMTPMailer(cfg, logger), nil
	case "resend":
		if cfg.ResendAPIKey == "" {
			return nil, fmt.Errorf("email.resend_api_key is required for the resend provider")
		}
		return NewResendMailer(cfg, logger), nil
	case "none", "":
		return NopMailer{Logger: logger}, nil
	}
	return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
}

// NopMailer drops every message
type NopMailer struct {
	Logger *slog.Logger
}

// Send logs and discards msg
func (m NopMailer) Send(_ context.Context, msg Message) error {
	if m.Logger != nil {
		m.Logger.Debug("email disabled, dropping message",
			"subject", msg.Subject,
			"recipients", len(msg.To)+len(msg.Bcc),
		)
	}
	return nil
}
