// Package scheduler собирает планировщик напоминаний об окончании подписки.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/entitlement-tracker/internal/cache"
	"github.com/magabrotheeeer/entitlement-tracker/internal/config"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/clock"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-tracker/internal/metrics"
	"github.com/magabrotheeeer/entitlement-tracker/internal/rabbitmq"
	schedulerservice "github.com/magabrotheeeer/entitlement-tracker/internal/services/scheduler"
	"github.com/magabrotheeeer/entitlement-tracker/internal/storage/repository"
)

// App приложение планировщика.
type App struct {
	schedulerService *schedulerservice.SchedulerService
	db               *repository.Storage
	cache            *cache.Cache
	conn             *amqp.Connection
	ch               *amqp.Channel
	logger           *slog.Logger
}

// New создает новый экземпляр приложения планировщика.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, registry prometheus.Registerer) (*App, error) {
	const op = "app.scheduler.New"
	a := &App{logger: logger}

	var err error
	a.conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect RabbitMQ: %w", op, err)
	}

	a.ch, err = rabbitmq.SetupChannel(a.conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: failed to setup RabbitMQ channel: %w", op, err)
	}

	a.db, err = repository.New(cfg.StorageConnectionString)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: failed to connect storage: %w", op, err)
	}

	if err := repository.WaitForDB(ctx, a.db, 10, 3*time.Second); err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.cache, err = cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("%s: cache not initialized: %w", op, err)
	}

	a.schedulerService = schedulerservice.NewSchedulerService(
		a.db,
		rabbitmq.NewPublisher(a.ch),
		a.cache,
		clock.Real{},
		metrics.NewEntitlementMetrics(registry),
		logger,
		schedulerservice.Options{
			EntitlementID: cfg.EntitlementID,
			Interval:      cfg.ReminderInterval,
		},
	)
	return a, nil
}

func (a *App) close() {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
	}
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
}

// Run запускает планировщик и ждёт отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.schedulerService.Run(ctx)
	a.logger.Info("shutting down scheduler service")
	a.close()
	return nil
}
