// Package sl вспомогательные атрибуты для slog.
package sl

import "log/slog"

// Err атрибут "error" с текстом ошибки. Для nil ошибки значение пустое.
//
//	log.Error("failed to save customer info", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// User атрибут с идентификатором клиента.
func User(appUserID string) slog.Attr {
	return slog.String("app_user_id", appUserID)
}
