package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntitlementMetrics_Counters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewEntitlementMetrics(registry).(*entitlementMetrics)

	m.IncLifecycleEvent("cancelled")
	m.IncLifecycleEvent("cancelled")
	m.IncLifecycleEvent("renewed")
	m.IncStatus("trial")
	m.IncNotificationSent("expired")
	m.IncReminderPublished("renewing_soon")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.lifecycleEvents.WithLabelValues("cancelled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lifecycleEvents.WithLabelValues("renewed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.statuses.WithLabelValues("trial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationsSent.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reminders.WithLabelValues("renewing_soon")))

	families, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "entitlement_lifecycle_events_total")
	assert.Contains(t, names, "entitlement_status_total")
}

func TestEntitlementMetrics_DuplicateRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewEntitlementMetrics(registry)

	assert.Panics(t, func() { NewEntitlementMetrics(registry) })
}

func TestNoop(t *testing.T) {
	m := Noop()
	assert.NotPanics(t, func() {
		m.IncLifecycleEvent("activated")
		m.IncStatus("none")
		m.IncNotificationSent("expired")
		m.IncReminderPublished("cancelled")
	})
}
