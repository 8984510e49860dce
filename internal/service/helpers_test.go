package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arena-wallet/internal/config"
	"github.com/arena-wallet/internal/domain"
	"github.com/arena-wallet/internal/phonepe"
	"github.com/arena-wallet/internal/postgres/testutil"
	"github.com/stretchr/testify/require"
)

// recorder captures post-commit side effects
type recorder struct {
	mu          sync.Mutex
	events      []domain.NotificationEvent
	invalidated map[string][]string
	pushed      []domain.Notification
}

func newRecorder() *recorder {
	return &recorder{invalidated: make(map[string][]string)}
}

func (r *recorder) Publish(_ context.Context, event domain.NotificationEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) Invalidate(topic string, keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invalidated[topic] = append(r.invalidated[topic], keys...)
}

func (r *recorder) PushNotification(n domain.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushed = append(r.pushed, n)
}

func (r *recorder) keys(topic string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.invalidated[topic]...)
}

func (r *recorder) titlesFor(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var titles []string
	for _, e := range r.events {
		if e.UserID == userID {
			titles = append(titles, e.Title)
		}
	}
	return titles
}

// fakeGateway answers like the payment provider would
type fakeGateway struct {
	mu      sync.Mutex
	state     phonepe.State
	payErr    error
	statusErr error
	paid      []phonepe.PayRequest
	queries   int
}

func (g *fakeGateway) Pay(_ context.Context, req phonepe.PayRequest) (*phonepe.PayResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.payErr != nil {
		return nil, g.payErr
	}
	g.paid = append(g.paid, req)
	return &phonepe.PayResponse{
		Response:    phonepe.Response{Success: true, Code: "PAYMENT_INITIATED"},
		RedirectURL: "https://pay.example.com/" + req.TransactionID,
	}, nil
}

func (g *fakeGateway) Status(_ context.Context, _ string) (*phonepe.StatusResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.queries++
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	return &phonepe.StatusResponse{State: g.state}, nil
}

// harness wires every service to one test database
type harness struct {
	db         *testutil.TestDatabase
	rec        *recorder
	gateway    *fakeGateway
	tournament *TournamentService
	ledger     *LedgerService
	settlement *SettlementService
	wallet     *WalletService
	payments   *PaymentService
	users      *UserService
}

func newHarness(t *testing.T, policy config.ResubmissionPolicy) *harness {
	t.Helper()
	db := testutil.SetupTestDatabase(t)
	logger := testutil.Logger()
	rec := newRecorder()
	gateway := &fakeGateway{state: phonepe.StateSuccess}

	fx := NewEffects(Effects{Hub: rec, Publisher: rec, Logger: logger})
	cacheCfg := &config.CacheConfig{TournamentTTL: time.Minute, ResultsTTL: time.Minute}

	return &harness{
		db:         db,
		rec:        rec,
		gateway:    gateway,
		tournament: NewTournamentService(db.Repo, fx, cacheCfg, logger),
		ledger:     NewLedgerService(db.Repo, fx, logger),
		settlement: NewSettlementService(db.Repo, fx, &config.SettlementConfig{ResubmissionPolicy: policy}, cacheCfg, logger),
		wallet:     NewWalletService(db.Repo, fx, logger),
		payments:   NewPaymentService(db.Repo, gateway, fx, logger),
		users:      NewUserService(db.Repo, fx, &config.LeaderboardConfig{DefaultLimit: 10, MaxLimit: 50}, logger),
	}
}

// join enters every user, failing the test on error
func (h *harness) join(t *testing.T, tournamentID string, userIDs ...string) {
	t.Helper()
	for _, id := range userIDs {
		_, err := h.ledger.Join(context.Background(), tournamentID, id)
		require.NoError(t, err)
	}
}
