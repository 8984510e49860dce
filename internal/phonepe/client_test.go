package phonepe

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-wallet/internal/config"
)

const (
	testMerchant = "PGTESTPAYUAT"
	testSalt     = "099eb0cd-02cf-4e2a-8aca-3e6c6aff0399"
)

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(&config.PaymentConfig{
		MerchantID:  testMerchant,
		SaltKey:     testSalt,
		SaltIndex:   "1",
		APIURL:      server.URL,
		FrontendURL: "https://arena.example.com",
		BackendURL:  "https://api.arena.example.com",
		Timeout:     5 * time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestChecksums(t *testing.T) {
	assert.Equal(t, sha("eyJhIjoxfQ==/pg/v1/pay"+testSalt)+"###1", PayChecksum("eyJhIjoxfQ==", testSalt, "1"))

	endpoint := "/pg/v1/status/" + testMerchant + "/TXN_1"
	assert.Equal(t, sha(endpoint+testSalt)+"###2", StatusChecksum(endpoint, testSalt, "2"))
}

func TestToPaise(t *testing.T) {
	assert.Equal(t, int64(49900), ToPaise(decimal.RequireFromString("499")))
	assert.Equal(t, int64(1050), ToPaise(decimal.RequireFromString("10.50")))
	assert.Equal(t, int64(1), ToPaise(decimal.RequireFromString("0.01")))
}

func TestStateForCode(t *testing.T) {
	assert.Equal(t, StateSuccess, StateForCode(true, CodePaymentSuccess))
	assert.Equal(t, StatePending, StateForCode(true, CodePaymentPending))
	assert.Equal(t, StatePending, StateForCode(false, CodePaymentPending))
	assert.Equal(t, StateFailed, StateForCode(false, "PAYMENT_ERROR"))
	assert.Equal(t, StateFailed, StateForCode(false, CodePaymentSuccess))
}

func TestClient_Pay(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/pg/v1/pay", r.URL.Path)

		var body struct {
			Request string `json:"request"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, PayChecksum(body.Request, testSalt, "1"), r.Header.Get("X-VERIFY"))

		raw, err := base64.StdEncoding.DecodeString(body.Request)
		require.NoError(t, err)
		var payload payPayload
		require.NoError(t, json.Unmarshal(raw, &payload))
		assert.Equal(t, testMerchant, payload.MerchantID)
		assert.Equal(t, "TXN_1_abcd1234", payload.MerchantTransactionID)
		assert.Equal(t, int64(25000), payload.Amount)
		assert.Equal(t, "https://api.arena.example.com/api/payments/phonepe/callback", payload.CallbackURL)
		assert.Equal(t, "PAY_PAGE", payload.PaymentInstrument.Type)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"success": true,
			"code": "PAYMENT_INITIATED",
			"message": "Payment initiated",
			"data": {"instrumentResponse": {"type": "PAY_PAGE", "redirectInfo": {"url": "https://mercury.phonepe.com/pay/abc", "method": "GET"}}}
		}`)
	})

	resp, err := client.Pay(context.Background(), PayRequest{
		TransactionID: "TXN_1_abcd1234",
		UserID:        "user-1",
		Amount:        decimal.RequireFromString("250"),
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "https://mercury.phonepe.com/pay/abc", resp.RedirectURL)
}

func TestClient_PayDeclined(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"success": false, "code": "BAD_REQUEST", "message": "Invalid amount"}`)
	})

	resp, err := client.Pay(context.Background(), PayRequest{TransactionID: "TXN_2", Amount: decimal.NewFromInt(1)})
	assert.ErrorContains(t, err, "BAD_REQUEST")
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
}

func TestClient_Status(t *testing.T) {
	tests := []struct {
		name string
		body string
		want State
	}{
		{"paid", `{"success": true, "code": "PAYMENT_SUCCESS"}`, StateSuccess},
		{"in flight", `{"success": false, "code": "PAYMENT_PENDING"}`, StatePending},
		{"declined", `{"success": false, "code": "PAYMENT_ERROR"}`, StateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				endpoint := "/pg/v1/status/" + testMerchant + "/TXN_3"
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, endpoint, r.URL.Path)
				assert.Equal(t, StatusChecksum(endpoint, testSalt, "1"), r.Header.Get("X-VERIFY"))
				assert.Equal(t, testMerchant, r.Header.Get("X-MERCHANT-ID"))
				_, _ = io.WriteString(w, tt.body)
			})

			resp, err := client.Status(context.Background(), "TXN_3")
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.State)
		})
	}
}

func TestClient_Errors(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = io.WriteString(w, `{"success": false, "code": "INTERNAL_SERVER_ERROR"}`)
		})
		_, err := client.Status(context.Background(), "TXN_4")
		assert.ErrorContains(t, err, "502")
	})

	t.Run("client error with a gateway code", func(t *testing.T) {
		for _, status := range []int{http.StatusUnauthorized, http.StatusTooManyRequests} {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				_, _ = io.WriteString(w, `{"success": false, "code": "UNAUTHORIZED", "message": "Key not found"}`)
			})
			resp, err := client.Status(context.Background(), "TXN_7")
			assert.Nil(t, resp, "a rejected request says nothing about the payment")

			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, status, statusErr.Status)
			assert.Equal(t, "UNAUTHORIZED", statusErr.Code)
		}
	})

	t.Run("undecodable body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "<html>maintenance</html>")
		})
		_, err := client.Status(context.Background(), "TXN_5")
		assert.Error(t, err)
	})

	t.Run("not configured", func(t *testing.T) {
		client := NewClient(&config.PaymentConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
		_, err := client.Pay(context.Background(), PayRequest{})
		assert.ErrorIs(t, err, ErrNotConfigured)
		_, err = client.Status(context.Background(), "TXN_6")
		assert.ErrorIs(t, err, ErrNotConfigured)
	})
}
