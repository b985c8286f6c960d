// Package scheduler периодически ищет скоро истекающие подписки и публикует напоминания.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/clock"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lifecycle"
	"github.com/magabrotheeeer/entitlement-tracker/internal/metrics"
	"github.com/magabrotheeeer/entitlement-tracker/internal/models"
	"github.com/magabrotheeeer/entitlement-tracker/internal/rabbitmq"
)

// Repository источник активных прав с датой окончания.
type Repository interface {
	FindExpiring(ctx context.Context, entitlementID string, from, to time.Time) ([]*models.ExpiringEntitlement, error)
}

// Publisher публикует сообщения в брокер.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// Deduplicator отмечает уже отправленные напоминания.
type Deduplicator interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
}

// Options параметры планировщика.
type Options struct {
	EntitlementID string
	// Window насколько вперёд искать истекающие права.
	// Нулевое значение означает окно статуса renewing_soon.
	Window   time.Duration
	Interval time.Duration
}

// SchedulerService планировщик напоминаний об окончании подписки.
type SchedulerService struct {
	repo    Repository
	pub     Publisher
	dedup   Deduplicator
	clock   clock.Clock
	metrics metrics.EntitlementMetrics
	log     *slog.Logger
	opts    Options
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo Repository, pub Publisher, dedup Deduplicator, clk clock.Clock,
	m metrics.EntitlementMetrics, log *slog.Logger, opts Options) *SchedulerService {
	if opts.Window <= 0 {
		opts.Window = time.Duration(lifecycle.RenewingSoonDays) * 24 * time.Hour
	}
	return &SchedulerService{
		repo:    repo,
		pub:     pub,
		dedup:   dedup,
		clock:   clk,
		metrics: m,
		log:     log,
		opts:    opts,
	}
}

// Run выполняет проверку сразу и затем каждые Interval до отмены ctx.
func (s *SchedulerService) Run(ctx context.Context) {
	s.runOnceLogged(ctx)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runOnceLogged(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *SchedulerService) runOnceLogged(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.log.Error("reminder run failed", sl.Err(err))
	}
}

// RunOnce публикует напоминания для прав, истекающих в ближайшие Window,
// и возвращает число опубликованных сообщений. Напоминание для одной и той же
// даты окончания публикуется один раз.
func (s *SchedulerService) RunOnce(ctx context.Context) (int, error) {
	const op = "services.scheduler.RunOnce"
	log := s.log.With(slog.String("op", op))

	now := s.clock.Now()
	items, err := s.repo.FindExpiring(ctx, s.opts.EntitlementID, now, now.Add(s.opts.Window))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(items) == 0 {
		log.Info("no expiring subscriptions found")
		return 0, nil
	}
	log.Info("found expiring subscriptions", slog.Int("count", len(items)))

	published := 0
	for _, item := range items {
		status := lifecycle.DeriveStatus(&item.Snapshot, &item.Snapshot, now)
		if _, ok := lifecycle.Reminder(status); !ok {
			continue
		}

		first, err := s.dedup.SetNX(ctx, reminderKey(item), now, s.opts.Window+s.opts.Interval)
		if err != nil {
			log.Warn("failed to check reminder dedup", sl.User(item.AppUserID), sl.Err(err))
		} else if !first {
			continue
		}

		msg := models.ReminderMessage{AppUserID: item.AppUserID, Email: item.Email, Status: status}
		if err := s.pub.Publish(rabbitmq.ReminderRoutingKey, msg); err != nil {
			log.Error("failed to publish reminder", sl.User(item.AppUserID), sl.Err(err))
			continue
		}
		s.metrics.IncReminderPublished(string(status.Status))
		published++
	}
	return published, nil
}

func reminderKey(item *models.ExpiringEntitlement) string {
	var exp int64
	if item.Snapshot.ExpirationDate != nil {
		exp = item.Snapshot.ExpirationDate.Unix()
	}
	return fmt.Sprintf("reminder:%s:%s:%d", item.AppUserID, item.Snapshot.EntitlementID, exp)
}
