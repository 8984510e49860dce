// Package phonepe is a client for the PhonePe standard checkout API.
package phonepe

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/arena-wallet/internal/config"
	"github.com/shopspring/decimal"
)

const (
	payEndpoint    = "/pg/v1/pay"
	statusEndpoint = "/pg/v1/status"

	// CodePaymentSuccess is the status code of a completed payment.
	CodePaymentSuccess = "PAYMENT_SUCCESS"
	// CodePaymentPending is the status code of a payment still in flight.
	CodePaymentPending = "PAYMENT_PENDING"
)

// ErrNotConfigured is returned when merchant credentials are missing.
var ErrNotConfigured = errors.New("phonepe merchant credentials are not configured")

// State is the outcome of a payment as far as the wallet is concerned
type State string

const (
	StateSuccess State = "success"
	StatePending State = "pending"
	StateFailed  State = "failed"
)

// PayRequest starts a checkout for one wallet deposit
type PayRequest struct {
	TransactionID string
	UserID        string
	Amount        decimal.Decimal
}

// Response is the envelope every PhonePe endpoint answers with
type Response struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// PayResponse carries the hosted payment page for the user
type PayResponse struct {
	Response
	RedirectURL string `json:"redirect_url,omitempty"`
}

type payData struct {
	InstrumentResponse struct {
		Type         string `json:"type"`
		RedirectInfo struct {
			URL    string `json:"url"`
			Method string `json:"method"`
		} `json:"redirectInfo"`
	} `json:"instrumentResponse"`
}

// StatusResponse is a payment status with the wallet-level outcome
type StatusResponse struct {
	Response
	State State `json:"state"`
}

type payPayload struct {
	MerchantID            string            `json:"merchantId"`
	MerchantTransactionID string            `json:"merchantTransactionId"`
	MerchantUserID        string            `json:"merchantUserId"`
	Amount                int64             `json:"amount"`
	RedirectURL           string            `json:"redirectUrl"`
	RedirectMode          string            `json:"redirectMode"`
	CallbackURL           string            `json:"callbackUrl"`
	PaymentInstrument     paymentInstrument `json:"paymentInstrument"`
}

type paymentInstrument struct {
	Type string `json:"type"`
}

// Client talks to the PhonePe API
type Client struct {
	cfg    *config.PaymentConfig
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a new PhonePe client
func NewClient(cfg *config.PaymentConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// PayChecksum signs a base64 pay payload
func PayChecksum(base64Payload, saltKey, saltIndex string) string {
	return checksum(base64Payload+payEndpoint+saltKey, saltIndex)
}

// StatusChecksum signs a status endpoint path
func StatusChecksum(endpoint, saltKey, saltIndex string) string {
	return checksum(endpoint+saltKey, saltIndex)
}

func checksum(s, saltIndex string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:]) + "###" + saltIndex
}

// ToPaise converts rupees to the integer paise the gateway expects
func ToPaise(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// StateForCode maps a status code to a wallet outcome
func StateForCode(success bool, code string) State {
	switch {
	case success && code == CodePaymentSuccess:
		return StateSuccess
	case code == CodePaymentPending:
		return StatePending
	}
	return StateFailed
}

// Pay creates a checkout session. A response with success false is returned
// alongside an error.
func (c *Client) Pay(ctx context.Context, req PayRequest) (*PayResponse, error) {
	if !c.cfg.Configured() {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(payPayload{
		MerchantID:            c.cfg.MerchantID,
		MerchantTransactionID: req.TransactionID,
		MerchantUserID:        req.UserID,
		Amount:                ToPaise(req.Amount),
		RedirectURL:           c.cfg.FrontendURL + "/payment/callback",
		RedirectMode:          "POST",
		CallbackURL:           c.cfg.BackendURL + "/api/payments/phonepe/callback",
		PaymentInstrument:     paymentInstrument{Type: "PAY_PAGE"},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding pay payload: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(payload)

	body, err := json.Marshal(map[string]string{"request": encoded})
	if err != nil {
		return nil, fmt.Errorf("encoding pay request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+payEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating pay request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-VERIFY", PayChecksum(encoded, c.cfg.SaltKey, c.cfg.SaltIndex))

	var resp PayResponse
	if err := c.do(httpReq, &resp.Response); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && resp.Code != "" {
			return &resp, err
		}
		return nil, err
	}
	if !resp.Success {
		return &resp, fmt.Errorf("payment initiation failed: %s", resp.Code)
	}

	var data payData
	if len(resp.Data) > 0 && json.Unmarshal(resp.Data, &data) == nil {
		resp.RedirectURL = data.InstrumentResponse.RedirectInfo.URL
	}
	return &resp, nil
}

// Status fetches the state of a payment
func (c *Client) Status(ctx context.Context, transactionID string) (*StatusResponse, error) {
	if !c.cfg.Configured() {
		return nil, ErrNotConfigured
	}

	endpoint := fmt.Sprintf("%s/%s/%s", statusEndpoint, c.cfg.MerchantID, transactionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating status request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-VERIFY", StatusChecksum(endpoint, c.cfg.SaltKey, c.cfg.SaltIndex))
	httpReq.Header.Set("X-MERCHANT-ID", c.cfg.MerchantID)

	var resp StatusResponse
	if err := c.do(httpReq, &resp.Response); err != nil {
		return nil, err
	}
	resp.State = StateForCode(resp.Success, resp.Code)
	return &resp, nil
}

// StatusError is a non-2xx reply from the gateway. Code is the gateway's
// error code when the body carried one.
type StatusError struct {
	Status int
	Code   string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("phonepe returned status %d", e.Status)
	}
	return fmt.Sprintf("phonepe returned status %d: %s", e.Status, e.Code)
}

// do sends req and decodes the envelope. Any non-2xx reply is a
// *StatusError; out still holds whatever envelope the body carried.
func (c *Client) do(req *http.Request, out *Response) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling phonepe: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading phonepe response: %w", err)
	}
	decodeErr := json.Unmarshal(raw, out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("phonepe request failed",
			"status", resp.StatusCode,
			"path", req.URL.Path,
			"code", out.Code,
		)
		return &StatusError{Status: resp.StatusCode, Code: out.Code}
	}
	if decodeErr != nil {
		c.logger.Error("undecodable phonepe response",
			"status", resp.StatusCode,
			"path", req.URL.Path,
			"body", string(raw),
		)
		return fmt.Errorf("decoding phonepe response (status %d): %w", resp.StatusCode, decodeErr)
	}
	return nil
}
