package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/arena-wallet/internal/domain"
	"github.com/shopspring/decimal"
)

// Cache is the server-side read cache
type Cache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// Broadcaster pushes change events to connected clients
type Broadcaster interface {
	Invalidate(topic string, keys ...string)
	PushNotification(n domain.Notification)
}

// Publisher hands notification events to the side-channel
type Publisher interface {
	Publish(ctx context.Context, event domain.NotificationEvent) error
}

// WinningsBoard is the all-time prize leaderboard
type WinningsBoard interface {
	AddWinnings(ctx context.Context, userID string, delta decimal.Decimal) error
	Top(ctx context.Context, n int) ([]domain.WinningsEntry, error)
}

// Effects bundles the post-commit side effects shared by the services.
// None of them can fail a request once the database has committed.
type Effects struct {
	Cache     Cache
	Hub       Broadcaster
	Publisher Publisher
	Board     WinningsBoard
	Logger    *slog.Logger
}

// NewEffects fills any nil dependency with a no-op
func NewEffects(fx Effects) *Effects {
	if fx.Cache == nil {
		fx.Cache = nopCache{}
	}
	if fx.Hub == nil {
		fx.Hub = nopBroadcaster{}
	}
	if fx.Publisher == nil {
		fx.Publisher = nopPublisher{}
	}
	if fx.Board == nil {
		fx.Board = nopBoard{}
	}
	if fx.Logger == nil {
		fx.Logger = slog.Default()
	}
	return &fx
}

// invalidate drops keys from the server cache and tells topic subscribers
func (e *Effects) invalidate(ctx context.Context, topic string, keys ...string) {
	if err := e.Cache.Invalidate(ctx, keys...); err != nil {
		e.Logger.Warn("failed to invalidate cache", "keys", keys, "error", err)
	}
	e.Hub.Invalidate(topic, keys...)
}

// walletChanged invalidates everything derived from a user's balance and history
func (e *Effects) walletChanged(ctx context.Context, userID string) {
	e.invalidate(ctx, domain.UserTopic(userID), domain.UserKey(userID), domain.TransactionsKey(userID))
	e.invalidate(ctx, domain.TopicAdmin, domain.KeyAllTxns)
}

// tournamentChanged invalidates a tournament, the list and any extra keys
func (e *Effects) tournamentChanged(ctx context.Context, id string, extra ...string) {
	keys := append([]string{domain.KeyTournaments, domain.TournamentKey(id)}, extra...)
	e.invalidate(ctx, domain.TopicTournaments, keys...)
}

func (e *Effects) publish(ctx context.Context, event domain.NotificationEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := e.Publisher.Publish(ctx, event); err != nil {
		e.Logger.Warn("failed to publish notification",
			"kind", event.Kind,
			"user_id", event.UserID,
			"error", err,
		)
	}
}

// notifyUser sends an in-app notification to one user
func (e *Effects) notifyUser(ctx context.Context, userID, title, message string, typ domain.NotificationType) {
	e.publish(ctx, domain.NotificationEvent{
		Kind:    domain.EventUser,
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    typ,
	})
}

// notifyAdmins sends an in-app notification to every admin
func (e *Effects) notifyAdmins(ctx context.Context, title, message string, typ domain.NotificationType) {
	e.publish(ctx, domain.NotificationEvent{
		Kind:    domain.EventAdmins,
		Title:   title,
		Message: message,
		Type:    typ,
	})
}

// alertAdminsByEmail emails the configured admin address
func (e *Effects) alertAdminsByEmail(ctx context.Context, title, message string, details map[string]any) {
	e.publish(ctx, domain.NotificationEvent{
		Kind:    domain.EventAdminEmail,
		Title:   title,
		Message: message,
		Details: details,
	})
}

func (e *Effects) addWinnings(ctx context.Context, userID string, delta decimal.Decimal) {
	if err := e.Board.AddWinnings(ctx, userID, delta); err != nil {
		e.Logger.Warn("failed to update winnings leaderboard", "user_id", userID, "error", err)
	}
	e.invalidate(ctx, domain.TopicTournaments, domain.KeyLeaderboard)
}

type nopCache struct{}

func (nopCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (nopCache) Set(context.Context, string, any, time.Duration) error { return nil }
func (nopCache) Invalidate(context.Context, ...string) error { return nil }

type nopBroadcaster struct{}

func (nopBroadcaster) Invalidate(string, ...string) {}
func (nopBroadcaster) PushNotification(domain.Notification) {}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, domain.NotificationEvent) error { return nil }

type nopBoard struct{}

func (nopBoard) AddWinnings(context.Context, string, decimal.Decimal) error { return nil }
func (nopBoard) Top(context.Context, int) ([]domain.WinningsEntry, error) { return nil, nil }
