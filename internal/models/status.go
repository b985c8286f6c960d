package models

import "time"

// StatusKind дискретный статус подписки для отображения.
type StatusKind string

const (
	StatusNone         StatusKind = "none"
	StatusExpired      StatusKind = "expired"
	StatusActive       StatusKind = "active"
	StatusCancelled    StatusKind = "cancelled"
	StatusRenewingSoon StatusKind = "renewing_soon"
	StatusTrial        StatusKind = "trial"
)

// SubscriptionStatus производное состояние подписки. Пересчитывается на каждый
// новый снимок и никогда не сохраняется как самостоятельная сущность.
type SubscriptionStatus struct {
	Status           StatusKind `json:"status"`
	Message          string     `json:"message"`
	ProductID        string     `json:"product_id,omitempty"`
	ExpirationDate   *time.Time `json:"expiration_date,omitempty"`
	WillRenew        bool       `json:"will_renew"`
	PeriodType       PeriodType `json:"period_type,omitempty"`
	DaysUntilExpiry  *int       `json:"days_until_expiry,omitempty"`
	BillingIssue     bool       `json:"billing_issue"`
	BillingIssueDate *time.Time `json:"billing_issue_date,omitempty"`
}

// ExpiringEntitlement строка хранилища для планировщика напоминаний.
type ExpiringEntitlement struct {
	AppUserID string
	Email     string
	Snapshot  Snapshot
}

// StoredState последнее сохранённое состояние права доступа клиента.
// Observed == false, если от клиента ещё не приходило ни одного обновления.
type StoredState struct {
	Observed      bool
	Email         string
	ManagementURL string
	// LastRequestDate момент формирования последнего принятого обновления или nil.
	LastRequestDate *time.Time
	// Current действующий снимок или nil.
	Current *Snapshot
	// EverHeld последний снимок права независимо от активности или nil.
	EverHeld *Snapshot
}
