package postgres

import (
	"context"
	"fmt"

	"github.com/arena-wallet/internal/domain"
	"github.com/jackc/pgx/v5"
)

// InsertNotifications stores the same message for each user and returns the rows
func (r *Repository) InsertNotifications(ctx context.Context, userIDs []string, title, message string, typ domain.NotificationType) ([]domain.Notification, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	if typ == "" {
		typ = domain.NotifyInfo
	}

	notifications := make([]domain.Notification, len(userIDs))
	batch := &pgx.Batch{}
	query := `
		INSERT INTO notifications (user_id, title, message, type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	for i, userID := range userIDs {
		n := &notifications[i]
		n.UserID = userID
		n.Title = title
		n.Message = message
		n.Type = typ
		batch.Queue(query, userID, title, message, string(typ)).QueryRow(func(row pgx.Row) error {
			return row.Scan(&n.ID, &n.CreatedAt)
		})
	}

	if err := r.sendBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("inserting notifications: %w", err)
	}
	return notifications, nil
}

// ListNotifications returns a user's latest notifications
func (r *Repository) ListNotifications(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, user_id, title, message, type, read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var notifications []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead flags a user's notification as read
func (r *Repository) MarkNotificationRead(ctx context.Context, id, userID string) error {
	result, err := r.q.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}
