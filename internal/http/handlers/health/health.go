// Package health реализует проверку готовности сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-tracker/internal/http/response"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/sl"
)

// Checker проверяет доступность зависимости.
type Checker func(ctx context.Context) error

// Handler обработчик GET /health.
type Handler struct {
	log    *slog.Logger
	checks map[string]Checker
}

// New создает Handler с проверками checks по именам зависимостей.
func New(log *slog.Logger, checks map[string]Checker) *Handler {
	return &Handler{
		log:    log,
		checks: checks,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"
	result := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			h.log.Error("health check failed", slog.String("op", op), slog.String("dependency", name), sl.Err(err))
			result[name] = "unavailable"
			healthy = false
			continue
		}
		result[name] = "ok"
	}

	if !healthy {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, response.Response{Status: response.StatusError, Error: "dependency unavailable", Data: result})
		return
	}
	render.JSON(w, r, response.StatusOKWithData(result))
}
