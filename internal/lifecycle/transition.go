package lifecycle

import (
	"time"

	"github.com/magabrotheeeer/entitlement-tracker/internal/models"
)

// EventKind тип события жизненного цикла подписки.
type EventKind string

const (
	EventActivated            EventKind = "activated"
	EventExpired              EventKind = "expired"
	EventCancelled            EventKind = "cancelled"
	EventReactivated          EventKind = "reactivated"
	EventRenewed              EventKind = "renewed"
	EventBillingIssueDetected EventKind = "billing_issue_detected"
)

// EventKinds возвращает все типы событий в порядке их проверки.
func EventKinds() []EventKind {
	return []EventKind{
		EventActivated,
		EventExpired,
		EventCancelled,
		EventReactivated,
		EventRenewed,
		EventBillingIssueDetected,
	}
}

// Event событие жизненного цикла. Snapshot равен nil только для EventExpired.
type Event struct {
	Kind     EventKind        `json:"kind"`
	Snapshot *models.Snapshot `json:"snapshot,omitempty"`
}

// Observation предыдущее наблюдение, которое хранит вызывающая сторона.
//
// Observed == false означает, что состояние ещё ни разу не наблюдалось
// (первый снимок в сессии). Snapshot == nil при Observed == true означает,
// что право доступа на тот момент не было активно.
type Observation struct {
	Observed bool
	Snapshot *models.Snapshot
}

// Observed возвращает наблюдение для уже известного состояния.
func Observed(s *models.Snapshot) Observation {
	return Observation{Observed: true, Snapshot: s}
}

// ClassifyTransition определяет события, произошедшие между предыдущим наблюдением
// и текущим действующим снимком. Первый снимок не является переходом и не порождает событий.
// Строки таблицы решений проверяются по порядку и независимо друг от друга.
func ClassifyTransition(prev Observation, current *models.Snapshot) []Event {
	if !prev.Observed {
		return nil
	}
	previous := prev.Snapshot

	var events []Event
	switch {
	case previous == nil && current != nil:
		events = append(events, Event{Kind: EventActivated, Snapshot: current})
	case previous != nil && current == nil:
		events = append(events, Event{Kind: EventExpired})
	case previous != nil && current != nil:
		if previous.WillRenew && !current.WillRenew {
			events = append(events, Event{Kind: EventCancelled, Snapshot: current})
		}
		if !previous.WillRenew && current.WillRenew {
			events = append(events, Event{Kind: EventReactivated, Snapshot: current})
		}
		// любое изменение даты, включая уменьшение, считается продлением
		if !sameTime(previous.ExpirationDate, current.ExpirationDate) {
			events = append(events, Event{Kind: EventRenewed, Snapshot: current})
		}
		if previous.BillingIssueDetectedAt == nil && current.BillingIssueDetectedAt != nil {
			events = append(events, Event{Kind: EventBillingIssueDetected, Snapshot: current})
		}
	}
	return events
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
