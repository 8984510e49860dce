package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arena-wallet/internal/config"
	"gopkg.in/gomail.v2"
)

// SMTPMailer sends through an SMTP relay
type SMTPMailer struct {
	from   string
	dialer *gomail.Dialer
	logger *slog.Logger
}

// NewSMTPMailer creates a mailer for cfg's SMTP relay
func NewSMTPMailer(cfg *config.EmailConfig, logger *slog.Logger) *SMTPMailer {
	return &SMTPMailer{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		logger: logger,
	}
}

// Send delivers msg in a single SMTP session
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	if len(msg.To) > 0 {
		gm.SetHeader("To", msg.To...)
	}
	if len(msg.Bcc) > 0 {
		gm.SetHeader("Bcc", msg.Bcc...)
	}
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTML)

	if err := m.dialer.DialAndSend(gm); err != nil {
		return fmt.Errorf("sending smtp email: %w", err)
	}

	m.logger.Info("email sent", "provider", "smtp", "subject", msg.Subject, "recipients", len(msg.To)+len(msg.Bcc))
	return nil
}
