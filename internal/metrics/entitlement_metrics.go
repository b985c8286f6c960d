// Package metrics содержит Prometheus-метрики трекера подписок.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EntitlementMetrics интерфейс для метрик жизненного цикла подписок
type EntitlementMetrics interface {
	IncLifecycleEvent(event string)
	IncStatus(status string)
	IncNotificationSent(kind string)
	IncReminderPublished(status string)
}

type entitlementMetrics struct {
	lifecycleEvents   *prometheus.CounterVec
	statuses          *prometheus.CounterVec
	notificationsSent *prometheus.CounterVec
	reminders         *prometheus.CounterVec
}

// NewEntitlementMetrics регистрирует метрики в registry
func NewEntitlementMetrics(registry prometheus.Registerer) EntitlementMetrics {
	factory := promauto.With(registry)
	return &entitlementMetrics{
		lifecycleEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitlement_lifecycle_events_total",
				Help: "The total number of detected subscription lifecycle events",
			},
			[]string{"event"},
		),
		statuses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitlement_status_total",
				Help: "The total number of derived subscription statuses",
			},
			[]string{"status"},
		),
		notificationsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitlement_notifications_sent_total",
				Help: "The total number of sent notification e-mails",
			},
			[]string{"kind"},
		),
		reminders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entitlement_reminders_published_total",
				Help: "The total number of published expiry reminders",
			},
			[]string{"status"},
		),
	}
}

// IncLifecycleEvent увеличивает счетчик событий
func (m *entitlementMetrics) IncLifecycleEvent(event string) {
	m.lifecycleEvents.WithLabelValues(event).Inc()
}

// IncStatus увеличивает счетчик вычисленных статусов
func (m *entitlementMetrics) IncStatus(status string) {
	m.statuses.WithLabelValues(status).Inc()
}

func (m *entitlementMetrics) IncNotificationSent(kind string) {
	m.notificationsSent.WithLabelValues(kind).Inc()
}

func (m *entitlementMetrics) IncReminderPublished(status string) {
	m.reminders.WithLabelValues(status).Inc()
}

type noop struct{}

// Noop возвращает метрики, которые ничего не записывают.
func Noop() EntitlementMetrics { return noop{} }

func (noop) IncLifecycleEvent(string)    {}
func (noop) IncStatus(string)            {}
func (noop) IncNotificationSent(string)  {}
func (noop) IncReminderPublished(string) {}
