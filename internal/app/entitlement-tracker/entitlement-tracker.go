// Package entitlementtracker собирает HTTP-сервис отслеживания подписок:
// хранилище, кеш, брокер, сервис сверки и маршруты.
package entitlementtracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/entitlement-tracker/internal/cache"
	"github.com/magabrotheeeer/entitlement-tracker/internal/config"
	"github.com/magabrotheeeer/entitlement-tracker/internal/http/handlers/health"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/clock"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/jwt"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-tracker/internal/metrics"
	"github.com/magabrotheeeer/entitlement-tracker/internal/migrations"
	"github.com/magabrotheeeer/entitlement-tracker/internal/rabbitmq"
	"github.com/magabrotheeeer/entitlement-tracker/internal/services/entitlement"
	"github.com/magabrotheeeer/entitlement-tracker/internal/storage/repository"
)

// App HTTP-приложение трекера подписок.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New подключает зависимости, применяет миграции и собирает маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.entitlementtracker.New"

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if version, dirty, err := migrations.Version(db.DB, cfg.MigrationsPath); err != nil {
		logger.Warn("failed to read schema version", sl.Err(err))
	} else {
		logger.Info("schema is up to date", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: cache not initialized: %w", op, err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: failed to connect RabbitMQ: %w", op, err)
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: failed to setup RabbitMQ channel: %w", op, err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	clk := clock.Real{}
	service := entitlement.NewService(db, cacheRedis, rabbitmq.NewPublisher(ch),
		metrics.NewEntitlementMetrics(registry), clk, logger, cfg.EntitlementID, cfg.StatusTTL)

	router := chi.NewRouter()
	RegisterRoutes(router, cfg, Deps{
		Logger:  logger,
		Service: service,
		Maker:   jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		Clock:   clk,
		Checks: map[string]health.Checker{
			"postgres": func(ctx context.Context) error { return db.DB.PingContext(ctx) },
			"redis":    func(ctx context.Context) error { return cacheRedis.Db.Ping(ctx).Err() },
		},
		Gatherer: registry,
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его при отмене ctx.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}
	a.close()
	return err
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close cache", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
