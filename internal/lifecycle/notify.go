package lifecycle

import (
	"fmt"
	"time"

	"github.com/magabrotheeeer/entitlement-tracker/internal/models"
)

// Action кнопка действия в уведомлении.
type Action struct {
	Text  string `json:"text"`
	Style string `json:"style"`
	// Intent идентификатор действия на стороне клиента, пустой для простого закрытия.
	Intent string `json:"intent,omitempty"`
}

// Notification пользовательское уведомление, соответствующее событию.
// Silent уведомления только логируются и не доставляются пользователю.
type Notification struct {
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Actions []Action `json:"actions"`
	Silent  bool     `json:"silent"`
}

type template struct {
	title   string
	body    func(s *models.Snapshot) string
	actions []Action
	silent  bool
}

var templates = map[EventKind]template{
	EventActivated: {
		title: "Welcome to Premium!",
		body: func(s *models.Snapshot) string {
			return fmt.Sprintf("Thank you for subscribing!\n\nYour subscription is now active until %s.", FormatDate(expiration(s)))
		},
		actions: []Action{{Text: "Awesome!", Style: "default"}},
	},
	EventExpired: {
		title: "Subscription Expired",
		body: func(_ *models.Snapshot) string {
			return "Your premium access has ended. Subscribe again to continue enjoying premium features!"
		},
		actions: []Action{
			{Text: "Maybe Later", Style: "cancel"},
			{Text: "Resubscribe", Style: "default", Intent: "show_offerings"},
		},
	},
	EventCancelled: {
		title: "Subscription Cancelled",
		body: func(s *models.Snapshot) string {
			return fmt.Sprintf("We're sorry to see you go!\n\nYou'll still have access until %s. "+
				"You can resubscribe anytime before then to keep your premium benefits.", FormatDate(expiration(s)))
		},
		actions: []Action{{Text: "OK", Style: "default"}},
	},
	EventReactivated: {
		title: "Welcome Back!",
		body: func(_ *models.Snapshot) string {
			return "Your subscription has been reactivated. Enjoy your premium features!"
		},
		actions: []Action{{Text: "Great!", Style: "default"}},
	},
	EventRenewed: {
		title: "Subscription Renewed",
		body: func(s *models.Snapshot) string {
			return "Subscription renewed until " + FormatDate(expiration(s))
		},
		silent: true,
	},
	EventBillingIssueDetected: {
		title: "Payment Issue",
		body: func(_ *models.Snapshot) string {
			return "There was a problem processing your subscription payment. " +
				"Please update your payment method to avoid losing access."
		},
		actions: []Action{
			{Text: "Later", Style: "cancel"},
			{Text: "Update Payment", Style: "default", Intent: "manage_subscription"},
		},
	},
}

// Notify возвращает уведомление для события. Второе значение false для неизвестного типа.
func Notify(e Event) (Notification, bool) {
	t, ok := templates[e.Kind]
	if !ok {
		return Notification{}, false
	}
	return Notification{
		Title:   t.title,
		Body:    t.body(e.Snapshot),
		Actions: t.actions,
		Silent:  t.silent,
	}, true
}

// Reminder возвращает напоминание по статусу подписки для планировщика.
// Напоминания формируются только для статусов renewing_soon и cancelled.
func Reminder(st models.SubscriptionStatus) (Notification, bool) {
	switch st.Status {
	case models.StatusRenewingSoon:
		return Notification{
			Title:   "Subscription Renews Soon",
			Body:    st.Message + ".",
			Actions: []Action{{Text: "OK", Style: "default"}},
		}, true
	case models.StatusCancelled:
		return Notification{
			Title: "Premium Access Ending",
			Body: fmt.Sprintf("Your subscription was cancelled and access ends on %s. "+
				"Resubscribe to keep your premium benefits.", FormatDate(st.ExpirationDate)),
			Actions: []Action{
				{Text: "Maybe Later", Style: "cancel"},
				{Text: "Resubscribe", Style: "default", Intent: "show_offerings"},
			},
		}, true
	default:
		return Notification{}, false
	}
}

func expiration(s *models.Snapshot) *time.Time {
	if s == nil {
		return nil
	}
	return s.ExpirationDate
}
