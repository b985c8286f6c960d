// Package models содержит доменные структуры, описывающие права доступа (entitlements)
// клиента, а также вспомогательные типы для приёма данных от коммерческого SDK.
package models

import (
	"strings"
	"time"
)

// PeriodType тип периода подписки, сообщаемый бэкендом.
type PeriodType string

const (
	// PeriodNormal обычный оплаченный период.
	PeriodNormal PeriodType = "normal"
	// PeriodTrial бесплатный пробный период.
	PeriodTrial PeriodType = "trial"
	// PeriodIntro вводный период по специальной цене.
	PeriodIntro PeriodType = "intro"
)

// Snapshot представляет состояние одного права доступа на момент получения от SDK.
// Поля ExpirationDate и BillingIssueDetectedAt могут быть nil:
// это означает отсутствие даты (бессрочная подписка или нет проблем с оплатой).
// После получения снимок не изменяется.
type Snapshot struct {
	EntitlementID          string     `json:"entitlement_id"`
	ProductIdentifier      string     `json:"product_identifier"`
	IsActive               bool       `json:"is_active"`
	WillRenew              bool       `json:"will_renew"`
	ExpirationDate         *time.Time `json:"expiration_date,omitempty"`
	PeriodType             PeriodType `json:"period_type"`
	BillingIssueDetectedAt *time.Time `json:"billing_issue_detected_at,omitempty"`
}

// CustomerInfo полное состояние клиента, присылаемое SDK при каждом изменении
// (покупка, восстановление, продление, отмена, истечение, ручное обновление).
// Active содержит только действующие права, в All попадают все права за всю историю.
type CustomerInfo struct {
	Active        map[string]*Snapshot
	All           map[string]*Snapshot
	ManagementURL string
	Email         string
	RequestDate   time.Time
}

// DummySnapshot используется для приёма снимка из JSON-запроса,
// прежде чем конвертировать его в Snapshot.
type DummySnapshot struct {
	ProductIdentifier      string     `json:"product_identifier" validate:"required"`
	IsActive               bool       `json:"is_active"`
	WillRenew              bool       `json:"will_renew"`
	ExpirationDate         *time.Time `json:"expiration_date"`
	PeriodType             string     `json:"period_type" validate:"omitempty,oneof=normal trial intro NORMAL TRIAL INTRO"`
	BillingIssueDetectedAt *time.Time `json:"billing_issue_detected_at"`
}

// DummyCustomerInfo тело webhook-запроса с обновлением состояния клиента.
type DummyCustomerInfo struct {
	AppUserID     string                    `json:"app_user_id" validate:"required"`
	Email         string                    `json:"email" validate:"omitempty,email"`
	ManagementURL string                    `json:"management_url" validate:"omitempty,url"`
	RequestDate   *time.Time                `json:"request_date"`
	Active        map[string]*DummySnapshot `json:"active" validate:"dive,required"`
	All           map[string]*DummySnapshot `json:"all" validate:"dive,required"`
}

// ToCustomerInfo конвертирует запрос в CustomerInfo. Ключ словаря становится
// EntitlementID снимка, права из Active всегда считаются действующими.
// При отсутствии request_date используется now.
func (d *DummyCustomerInfo) ToCustomerInfo(now time.Time) CustomerInfo {
	info := CustomerInfo{
		Active:        convertSnapshots(d.Active, true),
		All:           convertSnapshots(d.All, false),
		ManagementURL: d.ManagementURL,
		Email:         d.Email,
		RequestDate:   now,
	}
	if d.RequestDate != nil {
		info.RequestDate = d.RequestDate.UTC()
	}
	return info
}

func convertSnapshots(in map[string]*DummySnapshot, active bool) map[string]*Snapshot {
	out := make(map[string]*Snapshot, len(in))
	for id, d := range in {
		if d == nil {
			continue
		}
		period := PeriodType(strings.ToLower(d.PeriodType))
		if period == "" {
			period = PeriodNormal
		}
		out[id] = &Snapshot{
			EntitlementID:          id,
			ProductIdentifier:      d.ProductIdentifier,
			IsActive:               d.IsActive || active,
			WillRenew:              d.WillRenew,
			ExpirationDate:         utc(d.ExpirationDate),
			PeriodType:             period,
			BillingIssueDetectedAt: utc(d.BillingIssueDetectedAt),
		}
	}
	return out
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
