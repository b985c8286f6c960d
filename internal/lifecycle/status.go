// Package lifecycle реализует чистую логику жизненного цикла подписки:
// вычисление статуса по снимку права доступа и классификацию переходов
// между двумя последовательными снимками.
//
// Функции пакета не имеют состояния и могут вызываться конкурентно.
package lifecycle

import (
	"fmt"
	"math"
	"time"

	"github.com/magabrotheeeer/entitlement-tracker/internal/models"
)

const (
	// RenewingSoonDays порог в днях, начиная с которого подписка считается скоро продлеваемой.
	RenewingSoonDays = 3

	day = 24 * time.Hour

	dateLayout = "Jan 2, 2006"
)

// DeriveStatus вычисляет статус подписки.
//
// current: действующий снимок права доступа или nil, если право сейчас не активно.
// everHeld: последний исторический снимок того же права, используется только при current == nil.
func DeriveStatus(current, everHeld *models.Snapshot, now time.Time) models.SubscriptionStatus {
	if current == nil {
		if everHeld == nil {
			return models.SubscriptionStatus{
				Status:  models.StatusNone,
				Message: "No active subscription",
			}
		}
		return models.SubscriptionStatus{
			Status:         models.StatusExpired,
			Message:        "Your subscription has expired",
			ProductID:      everHeld.ProductIdentifier,
			ExpirationDate: everHeld.ExpirationDate,
		}
	}

	days := DaysUntil(current.ExpirationDate, now)

	res := models.SubscriptionStatus{
		Status:           models.StatusActive,
		Message:          "Your subscription is active",
		ProductID:        current.ProductIdentifier,
		ExpirationDate:   current.ExpirationDate,
		WillRenew:        current.WillRenew,
		PeriodType:       current.PeriodType,
		DaysUntilExpiry:  days,
		BillingIssue:     current.BillingIssueDetectedAt != nil,
		BillingIssueDate: current.BillingIssueDetectedAt,
	}

	switch {
	case !current.WillRenew:
		res.Status = models.StatusCancelled
		res.Message = "Cancelled - Access until " + FormatDate(current.ExpirationDate)
	case days != nil && *days <= RenewingSoonDays:
		res.Status = models.StatusRenewingSoon
		if *days <= 0 {
			// срок прошёл, бэкенд ещё держит право активным до подтверждения продления
			res.Message = "Renewal pending"
		} else {
			res.Message = fmt.Sprintf("Renews in %d %s", *days, plural(*days, "day", "days"))
		}
	case current.PeriodType == models.PeriodTrial:
		res.Status = models.StatusTrial
		if days != nil {
			res.Message = fmt.Sprintf("Free trial - %d %s remaining", *days, plural(*days, "day", "days"))
		} else {
			res.Message = "Free trial"
		}
	}

	return res
}

// DaysUntil возвращает количество календарных дней до даты с округлением вверх:
// неполный оставшийся день считается целым. Для nil возвращает nil.
func DaysUntil(t *time.Time, now time.Time) *int {
	if t == nil || t.IsZero() {
		return nil
	}
	d := int(math.Ceil(float64(t.Sub(now)) / float64(day)))
	return &d
}

// FormatDate форматирует дату для пользовательских сообщений.
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "the end of the current period"
	}
	return t.Format(dateLayout)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
