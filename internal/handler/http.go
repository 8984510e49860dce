package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/arena-wallet/internal/domain"
	"github.com/arena-wallet/internal/service"
	"github.com/arena-wallet/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

// Services are the business operations exposed over HTTP
type Services struct {
	Tournaments   *service.TournamentService
	Ledger        *service.LedgerService
	Settlement    *service.SettlementService
	Wallet        *service.WalletService
	Payments      *service.PaymentService
	Notifications *service.NotificationService
	Users         *service.UserService
}

// ProfileLoader resolves the caller's profile from the forwarded identity
type ProfileLoader interface {
	Get(ctx context.Context, id string) (*domain.Profile, error)
}

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler provides HTTP handlers for the arena API
type Handler struct {
	svc            Services
	profiles       ProfileLoader
	db             Pinger
	hub            *websocket.Hub
	allowedOrigins []string
	logger         *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(svc Services, profiles ProfileLoader, db Pinger, hub *websocket.Hub, allowedOrigins []string, logger *slog.Logger) *Handler {
	return &Handler{
		svc:            svc,
		profiles:       profiles,
		db:             db,
		hub:            hub,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(h.corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", h.HealthCheck)
		r.Get("/ready", h.ReadyCheck)

		// Change feed; anonymous connections only see the public topic
		r.With(h.optionalIdentity).Get("/ws", h.HandleWebSocket)

		// Public reads
		r.Get("/tournaments", h.ListTournaments)
		r.Get("/tournaments/{tournamentID}", h.GetTournament)
		r.Get("/tournaments/{tournamentID}/results", h.GetResults)
		r.Get("/tournaments/{tournamentID}/participants", h.ListParticipants)
		r.Get("/leaderboard", h.GetLeaderboard)

		// Called by the payment gateway
		r.Post("/payments/phonepe/callback", h.PaymentCallback)

		// Profile sync from the identity provider; the profile may not exist yet
		r.Post("/users", h.UpsertUser)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Post("/tournaments/{tournamentID}/join", h.JoinTournament)

			r.Get("/transactions", h.ListTransactions)
			r.Post("/transactions", h.CreateTransaction)
			r.Post("/transactions/deposit", h.RequestDeposit)
			r.Post("/transactions/withdraw", h.RequestWithdrawal)
			r.Get("/transactions/{transactionID}", h.GetTransaction)

			r.Post("/payments/create-order", h.CreatePaymentOrder)
			r.Get("/payments/status/{transactionID}", h.PaymentStatus)

			r.Get("/notifications", h.ListNotifications)
			r.Put("/notifications/{notificationID}/read", h.MarkNotificationRead)

			r.Get("/users/me", h.GetMe)

			// Admin operations
			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)

				r.Post("/tournaments", h.CreateTournament)
				r.Put("/tournaments/{tournamentID}", h.UpdateTournament)
				r.Delete("/tournaments/{tournamentID}", h.DeleteTournament)
				r.Post("/tournaments/{tournamentID}/results", h.SubmitResults)
				r.Post("/tournaments/{tournamentID}/cancel", h.CancelTournament)
				r.Post("/tournaments/{tournamentID}/winner", h.DeclareWinner)

				r.Put("/transactions/{transactionID}/approve", h.ApproveTransaction)
				r.Put("/transactions/{transactionID}/reject", h.RejectTransaction)

				r.Post("/notifications/broadcast", h.Broadcast)
				r.Post("/notifications/test", h.TestEmail)

				r.Get("/users", h.ListUsers)
				r.Get("/ws/stats", h.GetWebSocketStats)
			})
		})
	})

	return r
}

// corsMiddleware adds CORS headers for the configured origins
func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := h.allowOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID, X-User-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) allowOrigin(origin string) string {
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if origin != "" && strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeCreated writes a 201 JSON response
func (h *Handler) writeCreated(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// statusFor maps a service error to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAlreadyProcessed),
		errors.Is(err, domain.ErrTournamentFull),
		errors.Is(err, domain.ErrAlreadyJoined),
		errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrExternalService):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// writeServiceError maps err to a status. Unexpected errors are logged and
// replaced with a generic message.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		h.writeError(w, status, domain.ErrInternalError)
		return
	}
	h.writeError(w, status, err)
}

// decodeJSON reads a JSON body into dest
func decodeJSON(r *http.Request, dest any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.InvalidInput("request body is required")
		}
		return domain.InvalidInput("invalid request body: " + err.Error())
	}
	return nil
}

// queryInt parses an optional integer query parameter
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.InvalidInput(name + " must be an integer")
	}
	return n, nil
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck reports whether the database is reachable
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", "error", err)
			h.writeError(w, http.StatusServiceUnavailable, errors.New("database unavailable"))
			return
		}
	}
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	var who websocket.Identity
	if p, ok := profileFrom(r.Context()); ok {
		who = websocket.Identity{UserID: p.ID, IsAdmin: p.IsAdmin()}
	}
	websocket.ServeWs(h.hub, who, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]any{
		"total_connections":      h.hub.GetTotalConnections(),
		"tournament_subscribers": h.hub.GetSubscriberCount(domain.TopicTournaments),
	})
}
