// Package smtp отправка писем через SMTP с обязательным STARTTLS.
package smtp

import (
	"context"
	"io"
)

// Client минимальный набор команд SMTP-сессии, нужный для отправки одного письма.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// TransportInterface открывает авторизованную SMTP-сессию.
type TransportInterface interface {
	Connect(ctx context.Context) (Client, error)
	GetSMTPUser() string
}
