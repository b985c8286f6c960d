// Package management реализует выдачу инструкций по управлению подпиской.
package management

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-tracker/internal/http/response"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lifecycle"
)

// Service описывает получение инструкций.
type Service interface {
	Management(ctx context.Context, appUserID string, platform lifecycle.Platform) (*lifecycle.Management, error)
}

// Handler обработчик GET /api/v1/management?platform=ios|android.
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
	const op = "handlers.management"
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

	platform := lifecycle.Platform(strings.ToLower(r.URL.Query().Get("platform")))
	switch platform {
	case lifecycle.PlatformIOS, lifecycle.PlatformAndroid:
	case "":
		platform = lifecycle.PlatformAndroid
	default:
		log.Error("unknown platform", slog.String("platform", string(platform)))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("platform must be ios or android"))
		return
	}

	m, err := h.service.Management(r.Context(), appUserID, platform)
	if err != nil {
		log.Error("failed to build management instructions", sl.User(appUserID), sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not get management instructions"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(m))
}
