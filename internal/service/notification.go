package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/arena-wallet/internal/domain"
	"github.com/arena-wallet/internal/email"
	"github.com/arena-wallet/internal/postgres"
)

const notificationListLimit = 50

// Dispatcher delivers notification events: it stores in-app rows, pushes
// them to connected clients and sends email. It is the consumer side of
// the notification bus.
type Dispatcher struct {
	repo       *postgres.Repository
	hub        Broadcaster
	mailer     email.Mailer
	adminEmail string
	logger     *slog.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(repo *postgres.Repository, hub Broadcaster, mailer email.Mailer, adminEmail string, logger *slog.Logger) *Dispatcher {
	if hub == nil {
		hub = nopBroadcaster{}
	}
	return &Dispatcher{
		repo:       repo,
		hub:        hub,
		mailer:     mailer,
		adminEmail: adminEmail,
		logger:     logger,
	}
}

// HandleEvents delivers a batch. A failed event is logged and does not
// stop the rest of the batch.
func (d *Dispatcher) HandleEvents(ctx context.Context, events []domain.NotificationEvent) error {
	failed := 0
	for i := range events {
		if err := d.HandleEvent(ctx, events[i]); err != nil {
			failed++
			d.logger.Error("failed to deliver notification",
				"kind", events[i].Kind,
				"user_id", events[i].UserID,
				"error", err,
			)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d notifications failed", failed, len(events))
	}
	return nil
}

// HandleEvent delivers one event
func (d *Dispatcher) HandleEvent(ctx context.Context, event domain.NotificationEvent) error {
	if !event.Valid() {
		return domain.InvalidInput("invalid notification event")
	}

	switch event.Kind {
	case domain.EventUser:
		return d.store(ctx, []string{event.UserID}, event)

	case domain.EventAdmins:
		admins, err := d.repo.AdminIDs(ctx)
		if err != nil {
			return err
		}
		if len(admins) == 0 {
			d.logger.Debug("no admins to notify", "title", event.Title)
			return nil
		}
		return d.store(ctx, admins, event)

	case domain.EventAdminEmail:
		if d.adminEmail == "" {
			d.logger.Debug("no admin address configured, skipping alert", "title", event.Title)
			return nil
		}
		msg, err := email.AdminAlert(d.adminEmail, event.Title, event.Message, event.Details)
		if err != nil {
			return err
		}
		return d.mailer.Send(ctx, msg)

	case domain.EventBroadcast:
		recipients, err := d.repo.Recipients(ctx)
		if err != nil {
			return err
		}
		if len(recipients) == 0 {
			return nil
		}
		msg, err := email.Broadcast(addresses(recipients), event.Title, event.Message)
		if err != nil {
			return err
		}
		return d.mailer.Send(ctx, msg)
	}
	return nil
}

func (d *Dispatcher) store(ctx context.Context, userIDs []string, event domain.NotificationEvent) error {
	notifications, err := d.repo.InsertNotifications(ctx, userIDs, event.Title, event.Message, event.Type)
	if err != nil {
		return err
	}
	for _, n := range notifications {
		d.hub.PushNotification(n)
	}
	return nil
}

func addresses(recipients []domain.Recipient) []string {
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r.Email != "" {
			out = append(out, r.Email)
		}
	}
	return out
}

// InlinePublisher delivers events on a goroutine in this process. It stands
// in for the Kafka producer when Kafka is disabled.
type InlinePublisher struct {
	handler interface {
		HandleEvents(ctx context.Context, events []domain.NotificationEvent) error
	}
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewInlinePublisher creates a publisher that hands events straight to d
func NewInlinePublisher(d *Dispatcher, logger *slog.Logger) *InlinePublisher {
	return &InlinePublisher{
		handler: d,
		timeout: 30 * time.Second,
		logger:  logger,
	}
}

// Publish delivers event asynchronously and never fails
func (p *InlinePublisher) Publish(_ context.Context, event domain.NotificationEvent) error {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.handler.HandleEvents(ctx, []domain.NotificationEvent{event}); err != nil {
			p.logger.Warn("inline notification delivery failed", "error", err)
		}
	}()
	return nil
}

// Wait blocks until every published event has been handled
func (p *InlinePublisher) Wait() {
	p.wg.Wait()
}

// NotificationService serves a user's notifications and admin broadcasts
type NotificationService struct {
	repo       *postgres.Repository
	fx         *Effects
	mailer     email.Mailer
	adminEmail string
	logger     *slog.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(repo *postgres.Repository, fx *Effects, mailer email.Mailer, adminEmail string, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		repo:       repo,
		fx:         fx,
		mailer:     mailer,
		adminEmail: adminEmail,
		logger:     logger,
	}
}

// List returns a user's latest notifications
func (s *NotificationService) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	notifications, err := s.repo.ListNotifications(ctx, userID, notificationListLimit)
	if err != nil {
		return nil, err
	}
	if notifications == nil {
		notifications = []domain.Notification{}
	}
	return notifications, nil
}

// MarkRead flags one of the user's notifications as read
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	if !validID(id) {
		return domain.ErrNotificationNotFound
	}
	if err := s.repo.MarkNotificationRead(ctx, id, userID); err != nil {
		return err
	}
	s.fx.invalidate(ctx, domain.UserTopic(userID), domain.NotificationsKey(userID))
	return nil
}

// Broadcast queues an email to every user with an address and returns how
// many will receive it.
func (s *NotificationService) Broadcast(ctx context.Context, req domain.BroadcastRequest) (int, error) {
	if err := req.Validate(); err != nil {
		return 0, err
	}

	recipients, err := s.repo.Recipients(ctx)
	if err != nil {
		return 0, err
	}
	count := len(addresses(recipients))
	if count == 0 {
		return 0, domain.InvalidInput("no users with email addresses found")
	}

	s.fx.publish(ctx, domain.NotificationEvent{
		Kind:    domain.EventBroadcast,
		Title:   req.Subject,
		Message: req.Message,
	})
	s.logger.Info("broadcast queued", "subject", req.Subject, "recipients", count)
	return count, nil
}

// TestEmail sends a test message synchronously so configuration errors surface
func (s *NotificationService) TestEmail(ctx context.Context, to string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		to = s.adminEmail
	}
	if to == "" || !strings.Contains(to, "@") {
		return domain.InvalidInput("a valid recipient address is required")
	}

	msg, err := email.AdminAlert(to, "Test email", "Email delivery is configured correctly.", map[string]any{
		"sent_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Error("test email failed", "to", to, "error", err)
		return fmt.Errorf("%w: %v", domain.ErrExternalService, err)
	}
	return nil
}
