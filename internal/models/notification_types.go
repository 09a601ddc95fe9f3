package models

import "time"

// NotificationOrderPlaced is the only notification type written today.
const NotificationOrderPlaced = 0

// Notification is the model for the 'notifications' table.
type Notification struct {
	ID        int64      `json:"id"`
	UserID    string     `json:"user_id"`
	OrderID   *int64     `json:"order_id"`
	Message   string     `json:"message"`
	Read      bool       `json:"read"`
	Type      int        `json:"type"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}
