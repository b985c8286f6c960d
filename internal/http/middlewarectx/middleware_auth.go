// Package middlewarectx содержит HTTP middleware: проверку JWT клиента,
// проверку секрета входящих webhook-запросов и ограничение частоты запросов.
package middlewarectx

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/entitlement-tracker/internal/http/response"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/jwt"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/sl"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

// AppUserID ключ идентификатора клиента в контексте.
const AppUserID Key = "app_user_id"

// AppUserIDFrom возвращает идентификатор клиента, положенный JWTMiddleware.
func AppUserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(AppUserID).(string)
	return id, ok && id != ""
}

// JWTMiddleware проверяет JWT в заголовке Authorization и кладёт в контекст
// идентификатор клиента из поля sub.
func JWTMiddleware(maker jwt.Maker, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.JWTMiddleware"
			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			tokenStr, ok := bearer(r)
			if !ok {
				log.Error("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}

			claims, err := maker.ParseToken(tokenStr)
			if err != nil {
				log.Error("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}
			ctx := context.WithValue(r.Context(), AppUserID, claims.AppUserID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WebhookAuthMiddleware пропускает только запросы с общим секретом в заголовке
// Authorization: Bearer <secret>. При пустом секрете отклоняет все запросы.
func WebhookAuthMiddleware(secret string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.WebhookAuthMiddleware"
			got, ok := bearer(r)
			if !ok || secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				log.Error("webhook authorization failed",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return token, token != ""
}
