package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/entitlement-tracker/internal/lifecycle"
)

const (
	// Exchange direct-exchange для всех уведомлений.
	Exchange = "notifications"
	// LifecycleQueue очередь событий жизненного цикла подписки.
	LifecycleQueue = "notifications.lifecycle"
	// ReminderQueue очередь напоминаний планировщика.
	ReminderQueue = "notifications.reminder"
	// ReminderRoutingKey ключ маршрутизации напоминаний.
	ReminderRoutingKey = "reminder"
)

// QueueConfig очередь и ключ маршрутизации, с которым она привязана к Exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает привязки очередей уведомлений.
// Очередь событий привязана по ключу на каждый вид события.
func GetNotificationQueues() []QueueConfig {
	kinds := lifecycle.EventKinds()
	queues := make([]QueueConfig, 0, len(kinds)+1)
	for _, k := range kinds {
		queues = append(queues, QueueConfig{QueueName: LifecycleQueue, RoutingKey: string(k)})
	}
	return append(queues, QueueConfig{QueueName: ReminderQueue, RoutingKey: ReminderRoutingKey})
}

// SetupChannel открывает канал, объявляет Exchange и привязывает очереди.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	declared := make(map[string]bool, len(queues))
	for _, q := range queues {
		if !declared[q.QueueName] {
			if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
				return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
			}
			declared[q.QueueName] = true
		}

		if err := ch.QueueBind(q.QueueName, q.RoutingKey, Exchange, false, nil); err != nil {
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
