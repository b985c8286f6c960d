// Package sender собирает воркер рассылки уведомлений: потребители очередей
// notifications.lifecycle и notifications.reminder поверх SMTP-транспорта.
package sender

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/entitlement-tracker/internal/config"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/smtp"
	"github.com/magabrotheeeer/entitlement-tracker/internal/metrics"
	"github.com/magabrotheeeer/entitlement-tracker/internal/rabbitmq"
	senderservice "github.com/magabrotheeeer/entitlement-tracker/internal/services/notification-sender"
)

// App воркер рассылки.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

// New подключается к брокеру и создает сервис рассылки.
func New(cfg *config.Config, logger *slog.Logger, registry prometheus.Registerer) (*App, error) {
	const op = "app.sender.New"
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	senderService := senderservice.NewSenderService(transport, metrics.NewEntitlementMetrics(registry), logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run запускает потребителей и ждёт отмены ctx.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.LifecycleQueue, a.senderService.HandleLifecycle)
	if err != nil {
		a.logger.Error("failed to start lifecycle consumer", sl.Err(err))
		return err
	}

	err = rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, rabbitmq.ReminderQueue, a.senderService.HandleReminder)
	if err != nil {
		a.logger.Error("failed to start reminder consumer", sl.Err(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	return nil
}
