// Package status реализует получение текущего статуса подписки клиента.
package status

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-tracker/internal/http/response"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-tracker/internal/models"
)

// Service описывает получение статуса подписки.
type Service interface {
	Status(ctx context.Context, appUserID string) (*models.SubscriptionStatus, error)
}

// Handler обработчик GET /api/v1/status.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.status"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	appUserID, ok := middlewarectx.AppUserIDFrom(r.Context())
	if !ok {
		log.Error("app user id not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	st, err := h.service.Status(r.Context(), appUserID)
	if err != nil {
		log.Error("failed to get status", sl.User(appUserID), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not get subscription status"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(st))
}
