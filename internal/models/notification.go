package models

import "time"

// NotificationType enumerates lifecycle events surfaced to users.
type NotificationType string

const (
	NotificationAssigned      NotificationType = "WORK_ORDER_ASSIGNED"
	NotificationStatusChanged NotificationType = "WORK_ORDER_STATUS_CHANGED"
	NotificationCompleted     NotificationType = "WORK_ORDER_COMPLETED"
)

// Notification is a persisted in-app notification row.
type Notification struct {
	ID          string           `db:"id" json:"id"`
	UserID      string           `db:"user_id" json:"user_id"`
	Type        NotificationType `db:"type" json:"type"`
	Title       string           `db:"title" json:"title"`
	Body        string           `db:"body" json:"body"`
	WorkOrderID string           `db:"work_order_id" json:"work_order_id"`
	Read        bool             `db:"read" json:"read"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}
