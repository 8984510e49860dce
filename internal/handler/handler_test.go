package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-wallet/internal/domain"
	"github.com/arena-wallet/internal/websocket"
)

type fakeProfiles map[string]*domain.Profile

func (f fakeProfiles) Get(_ context.Context, id string) (*domain.Profile, error) {
	if p, ok := f[id]; ok {
		return p, nil
	}
	return nil, domain.ErrUserNotFound
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(pinger Pinger) http.Handler {
	profiles := fakeProfiles{
		"player-1": {ID: "player-1", Username: "sana", Role: domain.RoleUser},
		"admin-1":  {ID: "admin-1", Username: "ops", Role: domain.RoleAdmin},
	}
	logger := testLogger()
	h := NewHandler(Services{}, profiles, pinger, websocket.NewHub(logger), []string{"https://arena.example.com"}, logger)
	return h.Router()
}

func serve(t *testing.T, router http.Handler, req *http.Request) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp APIResponse
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrTournamentNotFound, http.StatusNotFound},
		{domain.InvalidInput("amount must be positive"), http.StatusBadRequest},
		{domain.ErrInsufficientBalance, http.StatusBadRequest},
		{domain.ErrAlreadyProcessed, http.StatusConflict},
		{domain.ErrTournamentFull, http.StatusConflict},
		{domain.ErrAlreadyJoined, http.StatusConflict},
		{domain.InvalidState("tournament is completed"), http.StatusConflict},
		{fmt.Errorf("create order: %w", domain.ErrExternalService), http.StatusBadGateway},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestAllowOrigin(t *testing.T) {
	h := &Handler{allowedOrigins: []string{"https://arena.example.com"}}
	assert.Equal(t, "https://ARENA.example.com", h.allowOrigin("https://ARENA.example.com"))
	assert.Empty(t, h.allowOrigin("https://evil.example.com"))
	assert.Empty(t, h.allowOrigin(""))

	h.allowedOrigins = []string{"*"}
	assert.Equal(t, "*", h.allowOrigin("https://anywhere.example.com"))
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/transactions", nil)
	req.Header.Set("Origin", "https://arena.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://arena.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), UserIDHeader)
}

func TestHealthAndReady(t *testing.T) {
	rec, resp := serve(t, newTestRouter(nil), httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	rec, resp = serve(t, newTestRouter(fakePinger{}), httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	rec, resp = serve(t, newTestRouter(fakePinger{err: errors.New("dial tcp: refused")}), httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "database unavailable", resp.Error)
}

func TestAuthentication(t *testing.T) {
	router := newTestRouter(nil)

	t.Run("missing identity", func(t *testing.T) {
		rec, resp := serve(t, router, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, resp.Success)
	})

	t.Run("unknown profile", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
		req.Header.Set(UserIDHeader, "ghost")
		rec, _ := serve(t, router, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("admin route as player", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/tournaments", strings.NewReader(`{}`))
		req.Header.Set(UserIDHeader, "player-1")
		rec, resp := serve(t, router, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, domain.ErrForbidden.Error(), resp.Error)
	})

	t.Run("websocket with unknown profile", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
		req.Header.Set(UserIDHeader, "ghost")
		rec, _ := serve(t, router, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAdminStats(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/ws/stats", nil)
	req.Header.Set(UserIDHeader, "admin-1")
	rec, resp := serve(t, newTestRouter(nil), req)

	require.Equal(t, http.StatusOK, rec.Code)
	stats, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 0, stats["total_connections"])
}

func TestCallbackTransactionID(t *testing.T) {
	envelope := base64.StdEncoding.EncodeToString([]byte(`{"code":"PAYMENT_SUCCESS","data":{"merchantTransactionId":"TXN_from_response"}}`))

	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
		wantErr     bool
	}{
		{
			name:        "form merchant id",
			contentType: "application/x-www-form-urlencoded",
			body:        url.Values{"merchantTransactionId": {"TXN_form"}, "code": {"PAYMENT_SUCCESS"}}.Encode(),
			want:        "TXN_form",
		},
		{
			name:        "form encoded response",
			contentType: "application/x-www-form-urlencoded",
			body:        url.Values{"response": {envelope}}.Encode(),
			want:        "TXN_from_response",
		},
		{
			name:        "json merchant id",
			contentType: "application/json",
			body:        `{"merchantTransactionId":"TXN_json","transactionId":"TXN_other"}`,
			want:        "TXN_json",
		},
		{
			name:        "json encoded response",
			contentType: "application/json",
			body:        `{"response":"` + envelope + `"}`,
			want:        "TXN_from_response",
		},
		{
			name:        "transaction id fallback",
			contentType: "application/json",
			body:        `{"response":"not base64!","transactionId":"TXN_plain"}`,
			want:        "TXN_plain",
		},
		{
			name:        "no id",
			contentType: "application/json",
			body:        `{"code":"PAYMENT_SUCCESS"}`,
			wantErr:     true,
		},
		{
			name:        "empty body",
			contentType: "application/json",
			wantErr:     true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/payments/phonepe/callback", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)

			got, err := callbackTransactionID(req)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?limit=25", nil)
	n, err := queryInt(req, "limit", 10)
	require.NoError(t, err)
	assert.Equal(t, 25, n)

	n, err = queryInt(req, "offset", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	req = httptest.NewRequest(http.MethodGet, "/api/leaderboard?limit=ten", nil)
	_, err = queryInt(req, "limit", 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
