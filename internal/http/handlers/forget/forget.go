// Package forget реализует удаление сохранённого состояния клиента.
package forget

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-tracker/internal/http/response"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-tracker/internal/storage/repository"
)

// Service описывает удаление состояния клиента.
type Service interface {
	Forget(ctx context.Context, appUserID string) error
}

// Handler обработчик DELETE /api/v1/customers/{app_user_id}.
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
	const op = "handlers.forget"
	appUserID := chi.URLParam(r, "app_user_id")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		sl.User(appUserID),
	)

	if appUserID == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("app user id is required"))
		return
	}

	err := h.service.Forget(r.Context(), appUserID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Info("customer not found")
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, response.Error("customer not found"))
		return
	}
	if err != nil {
		log.Error("failed to forget customer", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not delete customer"))
		return
	}

	log.Info("customer deleted")
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"app_user_id": appUserID,
	}))
}
