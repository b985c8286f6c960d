// Package sender доставляет уведомления о жизненном цикле подписки по e-mail.
package sender

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/smtp"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lifecycle"
	"github.com/magabrotheeeer/entitlement-tracker/internal/metrics"
	"github.com/magabrotheeeer/entitlement-tracker/internal/models"
)

// SenderService отправляет письма по сообщениям из очередей уведомлений.
type SenderService struct {
	transport smtp.TransportInterface
	metrics   metrics.EntitlementMetrics
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(transport smtp.TransportInterface, m metrics.EntitlementMetrics, log *slog.Logger) *SenderService {
	return &SenderService{
		transport: transport,
		metrics:   m,
		log:       log,
	}
}

// HandleLifecycle обрабатывает сообщение очереди notifications.lifecycle.
// Тихие уведомления и клиенты без e-mail пропускаются без ошибки.
func (s *SenderService) HandleLifecycle(ctx context.Context, body []byte) error {
	const op = "services.sender.HandleLifecycle"
	log := s.log.With(slog.String("op", op))

	var message models.LifecycleMessage
	if err := json.Unmarshal(body, &message); err != nil {
		log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w", op, err)
	}
	log = log.With(sl.User(message.AppUserID), slog.String("event", message.Event))

	n, ok := lifecycle.Notify(lifecycle.Event{Kind: lifecycle.EventKind(message.Event), Snapshot: message.Snapshot})
	if !ok {
		log.Warn("unknown lifecycle event, skipping")
		return nil
	}
	if n.Silent {
		log.Info("silent notification", slog.String("title", n.Title), slog.String("body", n.Body))
		return nil
	}
	if message.Email == "" {
		log.Info("customer has no e-mail, skipping")
		return nil
	}

	if err := s.sendEmail(ctx, []string{message.Email}, n.Title, renderBody(n, message.ManagementURL)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.IncNotificationSent(message.Event)
	return nil
}

// HandleReminder обрабатывает сообщение очереди notifications.reminder.
func (s *SenderService) HandleReminder(ctx context.Context, body []byte) error {
	const op = "services.sender.HandleReminder"
	log := s.log.With(slog.String("op", op))

	var message models.ReminderMessage
	if err := json.Unmarshal(body, &message); err != nil {
		log.Error("failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w", op, err)
	}

	n, ok := lifecycle.Reminder(message.Status)
	if !ok || message.Email == "" {
		log.Info("nothing to send", sl.User(message.AppUserID),
			slog.String("status", string(message.Status.Status)))
		return nil
	}

	if err := s.sendEmail(ctx, []string{message.Email}, n.Title, renderBody(n, "")); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.IncNotificationSent("reminder_" + string(message.Status.Status))
	return nil
}

// renderBody текст письма: тело уведомления и подписи к действиям.
func renderBody(n lifecycle.Notification, managementURL string) string {
	var b strings.Builder
	b.WriteString(n.Body)
	for _, a := range n.Actions {
		switch a.Intent {
		case "manage_subscription":
			if managementURL != "" {
				fmt.Fprintf(&b, "\n\n%s: %s", a.Text, managementURL)
			} else {
				fmt.Fprintf(&b, "\n\n%s in the app store subscription settings.", a.Text)
			}
		case "show_offerings":
			fmt.Fprintf(&b, "\n\n%s in the app.", a.Text)
		}
	}
	return b.String()
}

func (s *SenderService) sendEmail(ctx context.Context, to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect(ctx)
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", slog.String("from", s.transport.GetSMTPUser()), sl.Err(err))
		return err
	}

	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get Data writer", sl.Err(err))
		return err
	}

	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}

	if err = wc.Close(); err != nil {
		s.log.Error("failed to close Data writer", sl.Err(err))
		return err
	}

	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent successfully", slog.Any("to", to))
	return nil
}
