package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/arena-wallet/internal/config"
)

// ResendMailer sends through the Resend HTTP API
type ResendMailer struct {
	url    string
	apiKey string
	from   string
	client *http.Client
	logger *slog.Logger
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Bcc     []string `json:"bcc,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// NewResendMailer creates a Resend mailer
func NewResendMailer(cfg *config.EmailConfig, logger *slog.Logger) *ResendMailer {
	return &ResendMailer{
		url:    cfg.ResendURL,
		apiKey: cfg.ResendAPIKey,
		from:   cfg.From,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// Send posts msg to Resend. Resend requires a To address, so a bcc-only
// broadcast is addressed to the sender.
func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	to := msg.To
	if len(to) == 0 {
		to = []string{m.from}
	}

	body, err := json.Marshal(resendRequest{
		From:    m.from,
		To:      to,
		Bcc:     msg.Bcc,
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("encoding resend request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating resend request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling resend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("resend returned status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	m.logger.Info("email sent", "provider", "resend", "subject", msg.Subject, "recipients", len(to)+len(msg.Bcc))
	return nil
}
