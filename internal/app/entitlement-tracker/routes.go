package entitlementtracker

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/entitlement-tracker/internal/config"
	"github.com/magabrotheeeer/entitlement-tracker/internal/http/handlers/forget"
	"github.com/magabrotheeeer/entitlement-tracker/internal/http/handlers/health"
	"github.com/magabrotheeeer/entitlement-tracker/internal/http/handlers/management"
	"github.com/magabrotheeeer/entitlement-tracker/internal/http/handlers/status"
	"github.com/magabrotheeeer/entitlement-tracker/internal/http/handlers/webhook"
	"github.com/magabrotheeeer/entitlement-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/clock"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/jwt"
)

// EntitlementService все операции сервиса, доступные через HTTP.
type EntitlementService interface {
	webhook.Service
	status.Service
	management.Service
	forget.Service
}

// Deps зависимости маршрутов.
type Deps struct {
	Logger   *slog.Logger
	Service  EntitlementService
	Maker    jwt.Maker
	Clock    clock.Clock
	Checks   map[string]health.Checker
	Gatherer prometheus.Gatherer
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, cfg *config.Config, d Deps) {
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarectx.RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst, d.Logger))

		// Вызовы от сервера приложения и SDK-бэкенда
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.WebhookAuthMiddleware(cfg.WebhookSecret, d.Logger))
			r.Post("/webhooks/customer-info", webhook.New(d.Logger, d.Service, d.Clock).ServeHTTP)
			r.Delete("/customers/{app_user_id}", forget.New(d.Logger, d.Service).ServeHTTP)
		})

		// Вызовы от мобильного клиента
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Maker, d.Logger))
			r.Get("/status", status.New(d.Logger, d.Service).ServeHTTP)
			r.Get("/management", management.New(d.Logger, d.Service).ServeHTTP)
		})
	})

	r.Get("/health", health.New(d.Logger, d.Checks).ServeHTTP)
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
}
