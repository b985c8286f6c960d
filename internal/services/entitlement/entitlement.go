// Package entitlement сводит обновления состояния клиента от SDK с сохранённым
// состоянием: определяет события жизненного цикла, статус подписки, сохраняет
// новое состояние, кеширует статус и публикует события для рассылки уведомлений.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/clock"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/entitlement-tracker/internal/lifecycle"
	"github.com/magabrotheeeer/entitlement-tracker/internal/metrics"
	"github.com/magabrotheeeer/entitlement-tracker/internal/models"
)

const day = 24 * time.Hour

// ErrEmptyAppUserID возвращается при пустом идентификаторе клиента.
var ErrEmptyAppUserID = errors.New("app user id is empty")

// Repository хранилище последнего наблюдаемого состояния клиентов.
type Repository interface {
	// GetState возвращает сохранённое состояние права entitlementID клиента.
	GetState(ctx context.Context, appUserID, entitlementID string) (*models.StoredState, error)
	// SaveCustomerInfo сохраняет новое состояние клиента.
	SaveCustomerInfo(ctx context.Context, appUserID string, info models.CustomerInfo) error
	// DeleteCustomer удаляет клиента и его права.
	DeleteCustomer(ctx context.Context, appUserID string) error
}

// Cache кеш производных статусов.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Publisher публикует сообщения в брокер.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// Result итог обработки обновления от SDK.
type Result struct {
	Events    []lifecycle.Event         `json:"events"`
	Status    models.SubscriptionStatus `json:"status"`
	HasAccess bool                      `json:"has_access"`
}

// Service сервис отслеживания права доступа EntitlementID.
type Service struct {
	repo          Repository
	cache         Cache
	pub           Publisher
	metrics       metrics.EntitlementMetrics
	clock         clock.Clock
	log           *slog.Logger
	entitlementID string
	statusTTL     time.Duration
	locks         *keyedMutex
}

// NewService создает новый экземпляр Service.
func NewService(repo Repository, cache Cache, pub Publisher, m metrics.EntitlementMetrics,
	clk clock.Clock, log *slog.Logger, entitlementID string, statusTTL time.Duration) *Service {
	return &Service{
		repo:          repo,
		cache:         cache,
		pub:           pub,
		metrics:       m,
		clock:         clk,
		log:           log,
		entitlementID: entitlementID,
		statusTTL:     statusTTL,
		locks:         newKeyedMutex(),
	}
}

// StatusKey ключ кеша статуса клиента.
func StatusKey(appUserID string) string {
	return "status:" + appUserID
}

// Reconcile обрабатывает очередное состояние клиента. Сравнение с предыдущим
// состоянием и сохранение нового выполняются под блокировкой клиента, поэтому
// одно и то же изменение не порождает событие дважды. Обновление, сформированное
// раньше уже принятого (повтор или доставка не по порядку), не сохраняется и
// событий не порождает.
func (s *Service) Reconcile(ctx context.Context, appUserID string, info models.CustomerInfo) (*Result, error) {
	const op = "services.entitlement.Reconcile"
	if appUserID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyAppUserID)
	}
	log := s.log.With(slog.String("op", op), sl.User(appUserID))

	unlock := s.locks.Lock(appUserID)
	defer unlock()

	state, err := s.repo.GetState(ctx, appUserID, s.entitlementID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if state.LastRequestDate != nil && !info.RequestDate.IsZero() && info.RequestDate.Before(*state.LastRequestDate) {
		log.Info("stale update ignored",
			slog.Time("request_date", info.RequestDate), slog.Time("last_request_date", *state.LastRequestDate))
		return &Result{
			Events:    []lifecycle.Event{},
			Status:    lifecycle.DeriveStatus(state.Current, state.EverHeld, s.clock.Now()),
			HasAccess: state.Current != nil && state.Current.IsActive,
		}, nil
	}

	current := info.Active[s.entitlementID]
	// SDK может прислать неполную историю, тогда берём сохранённую
	everHeld := info.All[s.entitlementID]
	if everHeld == nil {
		everHeld = current
	}
	if everHeld == nil {
		everHeld = state.EverHeld
	}

	prev := lifecycle.Observation{Observed: state.Observed, Snapshot: state.Current}
	events := lifecycle.ClassifyTransition(prev, current)
	now := s.clock.Now()
	status := lifecycle.DeriveStatus(current, everHeld, now)

	if err := s.repo.SaveCustomerInfo(ctx, appUserID, info); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Set(ctx, StatusKey(appUserID), status, s.cacheTTL(status, now)); err != nil {
		log.Warn("failed to cache status", sl.Err(err))
	}

	email := info.Email
	if email == "" {
		email = state.Email
	}
	for _, e := range events {
		msg := models.LifecycleMessage{
			AppUserID:     appUserID,
			Email:         email,
			Event:         string(e.Kind),
			Snapshot:      e.Snapshot,
			ManagementURL: info.ManagementURL,
			OccurredAt:    now,
		}
		if err := s.pub.Publish(string(e.Kind), msg); err != nil {
			log.Error("failed to publish lifecycle event", slog.String("event", string(e.Kind)), sl.Err(err))
		}
		s.metrics.IncLifecycleEvent(string(e.Kind))
	}
	s.metrics.IncStatus(string(status.Status))

	if len(events) > 0 {
		log.Info("subscription lifecycle changed",
			slog.Int("events", len(events)), slog.String("status", string(status.Status)))
	}

	if events == nil {
		events = []lifecycle.Event{}
	}
	return &Result{
		Events:    events,
		Status:    status,
		HasAccess: lifecycle.HasAccess(info, s.entitlementID),
	}, nil
}

// Status возвращает текущий статус подписки клиента: из кеша либо
// вычисленный по сохранённому состоянию.
func (s *Service) Status(ctx context.Context, appUserID string) (*models.SubscriptionStatus, error) {
	const op = "services.entitlement.Status"
	if appUserID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyAppUserID)
	}

	var cached models.SubscriptionStatus
	found, err := s.cache.Get(ctx, StatusKey(appUserID), &cached)
	if err != nil {
		s.log.Warn("failed to read status from cache", slog.String("op", op), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	state, err := s.repo.GetState(ctx, appUserID, s.entitlementID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	now := s.clock.Now()
	status := lifecycle.DeriveStatus(state.Current, state.EverHeld, now)
	if state.Observed {
		if err := s.cache.Set(ctx, StatusKey(appUserID), status, s.cacheTTL(status, now)); err != nil {
			s.log.Warn("failed to cache status", slog.String("op", op), sl.Err(err))
		}
	}
	return &status, nil
}

// cacheTTL срок жизни статуса в кеше: не дольше statusTTL и не дольше момента,
// когда изменится округлённое вверх число дней до окончания.
func (s *Service) cacheTTL(status models.SubscriptionStatus, now time.Time) time.Duration {
	if status.DaysUntilExpiry == nil || status.ExpirationDate == nil {
		return s.statusTTL
	}
	left := status.ExpirationDate.Sub(now) % day
	if left <= 0 {
		left += day
	}
	return min(s.statusTTL, left)
}

// Management возвращает инструкции по управлению подпиской клиента.
func (s *Service) Management(ctx context.Context, appUserID string, platform lifecycle.Platform) (*lifecycle.Management, error) {
	const op = "services.entitlement.Management"
	if appUserID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyAppUserID)
	}

	state, err := s.repo.GetState(ctx, appUserID, s.entitlementID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m := lifecycle.ManagementInstructions(state.Current, state.ManagementURL, platform)
	return &m, nil
}

// Forget удаляет сохранённое состояние клиента. Следующее обновление от него
// будет считаться первым наблюдением и не породит событий.
func (s *Service) Forget(ctx context.Context, appUserID string) error {
	const op = "services.entitlement.Forget"
	if appUserID == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyAppUserID)
	}

	unlock := s.locks.Lock(appUserID)
	defer unlock()

	if err := s.repo.DeleteCustomer(ctx, appUserID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Invalidate(ctx, StatusKey(appUserID)); err != nil {
		s.log.Warn("failed to invalidate status", slog.String("op", op), sl.Err(err))
	}
	s.log.Info("customer state removed", slog.String("op", op), sl.User(appUserID))
	return nil
}
