// Package client is a Go client for the arena API. Reads go through a
// query cache; each mutation drops only the keys it affects, and a change
// feed subscription applies the server's own invalidations.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/arena-wallet/internal/domain"
	"github.com/arena-wallet/internal/service"
	"github.com/shopspring/decimal"
)

const (
	defaultTimeout = 10 * time.Second
	defaultTTL     = time.Minute
	userIDHeader   = "X-User-ID"
)

// APIError is a non-2xx response from the API
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.Status, e.Message)
}

var knownErrors = []error{
	domain.ErrInsufficientBalance,
	domain.ErrAlreadyProcessed,
	domain.ErrTournamentFull,
	domain.ErrAlreadyJoined,
	domain.ErrExternalService,
	domain.ErrUnauthorized,
	domain.ErrForbidden,
}

// Unwrap maps the response back onto the domain error it came from, so
// callers can use errors.Is with the same sentinels as the server.
func (e *APIError) Unwrap() error {
	for _, known := range knownErrors {
		if e.Message == known.Error() {
			return known
		}
	}
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusBadRequest:
		return domain.ErrInvalidInput
	case http.StatusConflict:
		return domain.ErrInvalidState
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusBadGateway:
		return domain.ErrExternalService
	}
	return nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Client talks to the arena API as one user
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
	cache      *QueryCache
	logger     *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCacheTTL sets how long query results stay fresh
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.cache = NewQueryCache(ttl) }
}

// WithLogger sets the client logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for baseURL (without the /api prefix) acting as userID.
// An empty userID makes anonymous requests.
func New(baseURL, userID string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userID:     userID,
		httpClient: &http.Client{Timeout: defaultTimeout},
		cache:      NewQueryCache(defaultTTL),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Cache exposes the query cache
func (c *Client) Cache() *QueryCache {
	return c.cache
}

// UserID is the identity the client sends
func (c *Client) UserID() string {
	return c.userID
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api"+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set(userIDHeader, c.userID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}
	if resp.StatusCode >= 300 || !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Error}
	}
	if dest == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// query serves key from the cache or fetches path and stores the result
func query[T any](ctx context.Context, c *Client, key, path string) (T, error) {
	if v, ok := c.cache.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	var out T
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return out, err
	}
	c.cache.Set(key, out)
	return out, nil
}

// mutate performs a write and drops the affected keys once it succeeds
func (c *Client) mutate(ctx context.Context, method, path string, body, dest any, keys ...string) error {
	if err := c.do(ctx, method, path, body, dest); err != nil {
		return err
	}
	c.cache.Invalidate(keys...)
	return nil
}

func (c *Client) ownKeys() []string {
	return []string{domain.UserKey(c.userID), domain.TransactionsKey(c.userID)}
}

// Tournaments lists every tournament
func (c *Client) Tournaments(ctx context.Context) ([]domain.Tournament, error) {
	return query[[]domain.Tournament](ctx, c, domain.KeyTournaments, "/tournaments")
}

// Tournament returns one tournament
func (c *Client) Tournament(ctx context.Context, id string) (*domain.Tournament, error) {
	return query[*domain.Tournament](ctx, c, domain.TournamentKey(id), "/tournaments/"+url.PathEscape(id))
}

// Participants lists a tournament's participants
func (c *Client) Participants(ctx context.Context, id string) ([]domain.Participant, error) {
	return query[[]domain.Participant](ctx, c, domain.TournamentKey(id)+":participants",
		"/tournaments/"+url.PathEscape(id)+"/participants")
}

// Results returns a tournament's results
func (c *Client) Results(ctx context.Context, id string) ([]domain.Result, error) {
	return query[[]domain.Result](ctx, c, domain.ResultsKey(id), "/tournaments/"+url.PathEscape(id)+"/results")
}

// Leaderboard returns the top prize winners
func (c *Client) Leaderboard(ctx context.Context) ([]domain.WinningsEntry, error) {
	return query[[]domain.WinningsEntry](ctx, c, domain.KeyLeaderboard, "/leaderboard")
}

// Me returns the caller's profile
func (c *Client) Me(ctx context.Context) (*service.Me, error) {
	return query[*service.Me](ctx, c, domain.UserKey(c.userID), "/users/me")
}

// Transactions returns the caller's own transactions. The user filter is
// explicit so an admin caller does not get every user's rows under its key.
func (c *Client) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	return query[[]domain.Transaction](ctx, c, domain.TransactionsKey(c.userID),
		"/transactions?userId="+url.QueryEscape(c.userID))
}

// AllTransactions returns every user's transactions, or one user's when
// userID is set. Admin only.
func (c *Client) AllTransactions(ctx context.Context, userID string) ([]domain.Transaction, error) {
	if userID == "" {
		return query[[]domain.Transaction](ctx, c, domain.KeyAllTxns, "/transactions")
	}
	return query[[]domain.Transaction](ctx, c, domain.TransactionsKey(userID),
		"/transactions?userId="+url.QueryEscape(userID))
}

// Notifications returns the caller's notifications
func (c *Client) Notifications(ctx context.Context) ([]domain.Notification, error) {
	return query[[]domain.Notification](ctx, c, domain.NotificationsKey(c.userID), "/notifications")
}

// Join enters the caller into a tournament
func (c *Client) Join(ctx context.Context, tournamentID string) (*domain.JoinResult, error) {
	var out domain.JoinResult
	keys := append(c.ownKeys(), domain.KeyTournaments, domain.TournamentKey(tournamentID))
	if err := c.mutate(ctx, http.MethodPost, "/tournaments/"+url.PathEscape(tournamentID)+"/join", nil, &out, keys...); err != nil {
		return nil, err
	}
	return &out, nil
}

// Deposit files a manual deposit for admin review
func (c *Client) Deposit(ctx context.Context, amount decimal.Decimal, upiRef string) (*domain.Transaction, error) {
	var out domain.Transaction
	req := domain.WalletRequest{Type: domain.TxDeposit, Amount: amount, UPIRef: upiRef}
	if err := c.mutate(ctx, http.MethodPost, "/transactions/deposit", req, &out, domain.TransactionsKey(c.userID)); err != nil {
		return nil, err
	}
	return &out, nil
}

// Withdraw requests a payout; the amount is held from the balance at once
func (c *Client) Withdraw(ctx context.Context, amount decimal.Decimal, upiID string) (*domain.Transaction, error) {
	var out domain.Transaction
	req := domain.WalletRequest{Type: domain.TxWithdrawal, Amount: amount, UserUPIID: upiID}
	if err := c.mutate(ctx, http.MethodPost, "/transactions/withdraw", req, &out, c.ownKeys()...); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateOrder starts a gateway checkout
func (c *Client) CreateOrder(ctx context.Context, amount decimal.Decimal) (*service.Order, error) {
	var out service.Order
	req := service.CreateOrderRequest{Amount: amount}
	if err := c.mutate(ctx, http.MethodPost, "/payments/create-order", req, &out, domain.TransactionsKey(c.userID)); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead marks a notification read
func (c *Client) MarkRead(ctx context.Context, notificationID string) error {
	return c.mutate(ctx, http.MethodPut, "/notifications/"+url.PathEscape(notificationID)+"/read", nil, nil,
		domain.NotificationsKey(c.userID))
}

// CreateTournament creates a tournament. Admin only.
func (c *Client) CreateTournament(ctx context.Context, req domain.CreateTournamentRequest) (*domain.Tournament, error) {
	var out domain.Tournament
	if err := c.mutate(ctx, http.MethodPost, "/tournaments", req, &out, domain.KeyTournaments); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTournament edits a tournament. Admin only.
func (c *Client) UpdateTournament(ctx context.Context, id string, req domain.UpdateTournamentRequest) (*domain.Tournament, error) {
	var out domain.Tournament
	if err := c.mutate(ctx, http.MethodPut, "/tournaments/"+url.PathEscape(id), req, &out,
		domain.KeyTournaments, domain.TournamentKey(id)); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTournament removes a tournament. Admin only.
func (c *Client) DeleteTournament(ctx context.Context, id string) error {
	return c.mutate(ctx, http.MethodDelete, "/tournaments/"+url.PathEscape(id), nil, nil,
		domain.KeyTournaments, domain.TournamentKey(id))
}

// SubmitResults settles a tournament. Admin only.
func (c *Client) SubmitResults(ctx context.Context, id string, req domain.SubmitResultsRequest) (*domain.SettlementResult, error) {
	var out domain.SettlementResult
	if err := c.mutate(ctx, http.MethodPost, "/tournaments/"+url.PathEscape(id)+"/results", req, &out,
		domain.KeyTournaments, domain.TournamentKey(id), domain.KeyLeaderboard, domain.KeyAllTxns); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelTournament cancels and refunds a tournament. Admin only.
func (c *Client) CancelTournament(ctx context.Context, id string) (*domain.CancelResult, error) {
	var out domain.CancelResult
	if err := c.mutate(ctx, http.MethodPost, "/tournaments/"+url.PathEscape(id)+"/cancel", nil, &out,
		domain.KeyTournaments, domain.TournamentKey(id), domain.KeyAllTxns); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeclareWinner pays the prize pool to one participant. Admin only.
func (c *Client) DeclareWinner(ctx context.Context, id, winnerID string) (*domain.Tournament, error) {
	var out domain.Tournament
	req := domain.DeclareWinnerRequest{WinnerID: winnerID}
	if err := c.mutate(ctx, http.MethodPost, "/tournaments/"+url.PathEscape(id)+"/winner", req, &out,
		domain.KeyTournaments, domain.TournamentKey(id), domain.KeyLeaderboard, domain.KeyAllTxns); err != nil {
		return nil, err
	}
	return &out, nil
}

// Approve approves a pending transaction. Admin only.
func (c *Client) Approve(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return c.review(ctx, transactionID, "approve")
}

// Reject rejects a pending transaction. Admin only.
func (c *Client) Reject(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return c.review(ctx, transactionID, "reject")
}

func (c *Client) review(ctx context.Context, transactionID, action string) (*domain.Transaction, error) {
	var out domain.Transaction
	path := "/transactions/" + url.PathEscape(transactionID) + "/" + action
	if err := c.do(ctx, http.MethodPut, path, nil, &out); err != nil {
		return nil, err
	}
	// The owner is only known from the response.
	c.cache.Invalidate(domain.KeyAllTxns, domain.UserKey(out.UserID), domain.TransactionsKey(out.UserID))
	return &out, nil
}

// IsNotFound reports whether err is a 404 from the API
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
