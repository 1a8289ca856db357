package model

import (
	"encoding/json"
	"time"
)

// NotificationContent is the payload of a notification, stored once per
// (user_id, notification_id). It is decoupled from deliveries so one
// payload can back several timestamped delivery records.
type NotificationContent struct {
	UserID         string          `db:"user_id" json:"-"`
	NotificationID string          `db:"notification_id" json:"notification_id"`
	Payload        json.RawMessage `db:"payload" json:"payload"`
}

// NotificationDelivery is one timestamped delivery of a notification,
// unique per (user_id, notification_id, delivered_at).
type NotificationDelivery struct {
	UserID         string    `db:"user_id" json:"-"`
	NotificationID string    `db:"notification_id" json:"notification_id"`
	DeliveredAt    time.Time `db:"delivered_at" json:"delivered_at"`
}

// Notification joins a delivery with its content for listing.
type Notification struct {
	NotificationID string          `db:"notification_id" json:"notification_id"`
	Payload        json.RawMessage `db:"payload" json:"payload"`
	DeliveredAt    time.Time       `db:"delivered_at" json:"delivered_at"`
}
