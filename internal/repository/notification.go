package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"greengen/internal/model"
)

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// UpsertContent writes the payload for (userID, notificationID). When a
// payload is already stored it is kept: the content record is shared by
// every delivery of that notification.
func (r *notificationRepository) UpsertContent(ctx context.Context, userID, notificationID string, payload json.RawMessage) error {
	query := `
		INSERT INTO notification_content (user_id, notification_id, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, notification_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, userID, notificationID, []byte(payload))
	if err != nil {
		if _, ok := foreignKeyViolation(err); ok {
			return model.ErrUserNotFound
		}
		return fmt.Errorf("upsert notification content: %w", err)
	}
	return nil
}

// InsertDelivery appends one timestamped delivery record. A retry with
// the same timestamp is a no-op.
func (r *notificationRepository) InsertDelivery(ctx context.Context, userID, notificationID string, deliveredAt time.Time) error {
	query := `
		INSERT INTO notification_deliveries (user_id, notification_id, delivered_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, notification_id, delivered_at) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query, userID, notificationID, deliveredAt)
	if err != nil {
		if _, ok := foreignKeyViolation(err); ok {
			return model.ErrUserNotFound
		}
		return fmt.Errorf("insert notification delivery: %w", err)
	}
	return nil
}

// List returns a user's deliveries joined with their content, newest
// first.
func (r *notificationRepository) List(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	query := `
		SELECT d.notification_id, c.payload, d.delivered_at
		FROM notification_deliveries d
		JOIN notification_content c
		  ON c.user_id = d.user_id AND c.notification_id = d.notification_id
		WHERE d.user_id = $1
		ORDER BY d.delivered_at DESC
		LIMIT $2
	`
	var notifications []model.Notification
	err := r.db.SelectContext(ctx, &notifications, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}
