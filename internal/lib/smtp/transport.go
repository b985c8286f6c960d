package smtp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"github.com/magabrotheeeer/entitlement-tracker/internal/config"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/sl"
)

const dialTimeout = 10 * time.Second

// ErrNoStartTLS сервер не поддерживает STARTTLS, отправка без шифрования запрещена.
var ErrNoStartTLS = errors.New("smtp server does not support STARTTLS")

// Transport SMTP-транспорт уведомлений.
type Transport struct {
	cfg config.SMTP
	log *slog.Logger
}

// NewTransport создает новый экземпляр Transport.
func NewTransport(cfg config.SMTP, log *slog.Logger) *Transport {
	return &Transport{cfg: cfg, log: log}
}

// Connect устанавливает соединение с SMTP сервером, включает TLS и проходит авторизацию.
func (t *Transport) Connect(ctx context.Context) (Client, error) {
	const op = "smtp.Connect"
	addr := net.JoinHostPort(t.cfg.SMTPHost, t.cfg.SMTPPort)
	log := t.log.With(slog.String("op", op), slog.String("addr", addr))

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		log.Error("failed to dial SMTP server", sl.Err(err))
		return nil, fmt.Errorf("%s: failed to dial SMTP server: %w", op, err)
	}

	client, err := smtp.NewClient(conn, t.cfg.SMTPHost)
	if err != nil {
		closeQuietly(log, conn)
		return nil, fmt.Errorf("%s: failed to create SMTP client: %w", op, err)
	}

	if ok, _ := client.Extension("STARTTLS"); !ok {
		closeQuietly(log, client)
		return nil, fmt.Errorf("%s: %w", op, ErrNoStartTLS)
	}
	err = client.StartTLS(&tls.Config{
		ServerName: t.cfg.SMTPHost,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		closeQuietly(log, client)
		return nil, fmt.Errorf("%s: failed to start TLS: %w", op, err)
	}

	if err = client.Auth(smtp.PlainAuth("", t.cfg.SMTPUser, t.cfg.SMTPPass, t.cfg.SMTPHost)); err != nil {
		closeQuietly(log, client)
		return nil, fmt.Errorf("%s: smtp auth failed: %w", op, err)
	}

	return client, nil
}

// GetSMTPUser возвращает адрес отправителя.
func (t *Transport) GetSMTPUser() string {
	return t.cfg.SMTPUser
}

func closeQuietly(log *slog.Logger, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Error("failed to close SMTP connection", sl.Err(err))
	}
}
