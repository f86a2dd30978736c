package model

import "time"

// Notification categories emitted by the core pipeline.
const (
	NotificationDeposit    = "deposit"
	NotificationWithdrawal = "withdrawal"
)

// Notification is a user-facing message produced by the pipeline. Delivery is
// fire-and-forget: a failure to record or deliver a notification never rolls
// back the financial effect that produced it.
type Notification struct {
	NotificationID string                 `json:"notification_id"`
	AccountID      string                 `json:"account_id"`
	Category       string                 `json:"category"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Data           map[string]interface{} `json:"data,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}
