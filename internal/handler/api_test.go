package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arena-wallet/internal/config"
	"github.com/arena-wallet/internal/domain"
	"github.com/arena-wallet/internal/email"
	"github.com/arena-wallet/internal/postgres/testutil"
	"github.com/arena-wallet/internal/service"
	"github.com/arena-wallet/internal/websocket"
)

type apiFixture struct {
	db     *testutil.TestDatabase
	router http.Handler
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db := testutil.SetupTestDatabase(t)
	logger := testutil.Logger()

	hub := websocket.NewHub(logger)
	fx := service.NewEffects(service.Effects{Hub: hub, Logger: logger})
	cacheCfg := &config.CacheConfig{TournamentTTL: time.Minute, ResultsTTL: time.Minute}

	users := service.NewUserService(db.Repo, fx, &config.LeaderboardConfig{DefaultLimit: 10, MaxLimit: 50}, logger)
	svc := Services{
		Tournaments:   service.NewTournamentService(db.Repo, fx, cacheCfg, logger),
		Ledger:        service.NewLedgerService(db.Repo, fx, logger),
		Settlement:    service.NewSettlementService(db.Repo, fx, &config.SettlementConfig{ResubmissionPolicy: config.PolicyReverse}, cacheCfg, logger),
		Wallet:        service.NewWalletService(db.Repo, fx, logger),
		Notifications: service.NewNotificationService(db.Repo, fx, email.NopMailer{}, "", logger),
		Users:         users,
	}

	h := NewHandler(svc, users, db.Repo, hub, []string{"*"}, logger)
	return &apiFixture{db: db, router: h.Router()}
}

func (f *apiFixture) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.True(t, env.Success, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, dest))
}

func TestAPI_TournamentLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.db.CreateAdmin(t, "ops")
	alpha := f.db.CreateUser(t, "alpha", "100")
	bravo := f.db.CreateUser(t, "bravo", "100")

	rec := f.do(t, http.MethodPost, "/api/tournaments", admin, domain.CreateTournamentRequest{
		Title:      "  Sunday Cup  ",
		Game:       "BGMI",
		EntryFee:   decimal.NewFromInt(50),
		PrizePool:  decimal.NewFromInt(500),
		StartDate:  time.Now().Add(48 * time.Hour).UTC(),
		MaxPlayers: 2,
		PrizeRules: []domain.PrizeRule{{Rank: 1, Amount: decimal.NewFromInt(80)}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created domain.Tournament
	decodeData(t, rec, &created)
	assert.Equal(t, "Sunday Cup", created.Title)
	assert.Equal(t, domain.StatusUpcoming, created.Status)

	joinPath := "/api/tournaments/" + created.ID + "/join"
	rec = f.do(t, http.MethodPost, joinPath, alpha, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var joined domain.JoinResult
	decodeData(t, rec, &joined)
	assert.True(t, joined.NewBalance.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, 1, joined.CurrentPlayers)

	rec = f.do(t, http.MethodPost, joinPath, alpha, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "joining twice")

	rec = f.do(t, http.MethodPost, joinPath, bravo, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/tournaments/"+created.ID+"/participants", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/tournaments/"+created.ID, admin, map[string]string{"status": "ongoing"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/tournaments/"+created.ID+"/results", admin, map[string]any{
		"results": []map[string]any{
			{"user_id": alpha, "rank": 1, "kills": 3},
			{"user_id": bravo, "rank": 2, "kills": 0},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, f.db.Balance(t, alpha).Equal(decimal.NewFromInt(130)))
	assert.True(t, f.db.Balance(t, bravo).Equal(decimal.NewFromInt(50)))

	rec = f.do(t, http.MethodGet, "/api/tournaments/"+created.ID+"/results", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/tournaments/"+created.ID+"/cancel", admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "completed tournaments cannot be cancelled")
}

func TestAPI_Wallet(t *testing.T) {
	f := newAPIFixture(t)
	admin := f.db.CreateAdmin(t, "ops")
	player := f.db.CreateUser(t, "sana", "0")

	rec := f.do(t, http.MethodPost, "/api/transactions/deposit", player, map[string]string{
		"amount":  "250.50",
		"upi_ref": "UTR123456",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var deposit domain.Transaction
	decodeData(t, rec, &deposit)
	assert.Equal(t, domain.TxPending, deposit.Status)

	rec = f.do(t, http.MethodPut, "/api/transactions/"+deposit.ID+"/approve", player, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/transactions/"+deposit.ID+"/approve", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, f.db.Balance(t, player).Equal(decimal.RequireFromString("250.50")))

	rec = f.do(t, http.MethodPut, "/api/transactions/"+deposit.ID+"/approve", admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/transactions/withdraw", player, map[string]string{
		"amount":      "1000",
		"user_upi_id": "sana@okaxis",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/transactions", player, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var txns []domain.Transaction
	decodeData(t, rec, &txns)
	require.Len(t, txns, 1)
	assert.Equal(t, deposit.ID, txns[0].ID)

	rec = f.do(t, http.MethodGet, "/api/transactions?userId="+admin, admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	txns = nil
	decodeData(t, rec, &txns)
	assert.Empty(t, txns, "an admin's own list excludes other users")

	rec = f.do(t, http.MethodGet, "/api/transactions", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &txns)
	assert.Len(t, txns, 1)

	rec = f.do(t, http.MethodGet, "/api/users/me", player, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me service.Me
	decodeData(t, rec, &me)
	assert.Equal(t, "sana", me.Username)
	assert.Empty(t, me.JoinedTournaments)
}
