// Package webhook реализует приём обновлений состояния клиента от SDK.
//
// Handler декодирует и валидирует тело запроса, конвертирует его в CustomerInfo
// и передаёт сервису сверки. В ответе возвращаются найденные события и статус подписки.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/entitlement-tracker/internal/http/response"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/clock"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-tracker/internal/models"
	"github.com/magabrotheeeer/entitlement-tracker/internal/services/entitlement"
)

// maxBodyBytes ограничение размера тела запроса.
const maxBodyBytes = 1 << 20

// Service описывает сверку состояния клиента.
type Service interface {
	Reconcile(ctx context.Context, appUserID string, info models.CustomerInfo) (*entitlement.Result, error)
}

// Handler обработчик POST /api/v1/webhooks/customer-info.
type Handler struct {
	log      *slog.Logger
	service  Service
	clock    clock.Clock
	validate *validator.Validate
}

// New создает новый Handler.
func New(log *slog.Logger, service Service, clk clock.Clock) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		clock:    clk,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.webhook"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyCustomerInfo
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("invalid request body"))
			return
		}
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(verrs))
		return
	}

	log = log.With(sl.User(req.AppUserID))
	res, err := h.service.Reconcile(r.Context(), req.AppUserID, req.ToCustomerInfo(h.clock.Now()))
	if err != nil {
		log.Error("failed to reconcile customer info", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not process customer info"))
		return
	}

	log.Info("customer info processed", slog.Int("events", len(res.Events)))
	render.JSON(w, r, response.StatusOKWithData(res))
}
