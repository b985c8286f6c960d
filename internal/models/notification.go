package models

import "time"

// LifecycleMessage сообщение очереди notifications.lifecycle о переходе права доступа.
type LifecycleMessage struct {
	AppUserID     string    `json:"app_user_id"`
	Email         string    `json:"email"`
	Event         string    `json:"event"`
	Snapshot      *Snapshot `json:"snapshot,omitempty"`
	ManagementURL string    `json:"management_url,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ReminderMessage сообщение очереди notifications.reminder.
type ReminderMessage struct {
	AppUserID string             `json:"app_user_id"`
	Email     string             `json:"email"`
	Status    SubscriptionStatus `json:"status"`
}
