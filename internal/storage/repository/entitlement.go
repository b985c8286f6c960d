package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/entitlement-tracker/internal/models"
)

// GetState возвращает последнее сохранённое состояние права entitlementID клиента.
// Для клиента, от которого ещё не было обновлений, возвращается StoredState с Observed == false.
func (s *Storage) GetState(ctx context.Context, appUserID, entitlementID string) (*models.StoredState, error) {
	const op = "storage.GetState"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT c.email, c.management_url, c.last_request_date,
				e.product_identifier, e.is_active, e.will_renew, e.expiration_date,
				e.period_type, e.billing_issue_detected_at
			  FROM customers c
			  LEFT JOIN entitlements e
			    ON e.app_user_id = c.app_user_id AND e.entitlement_id = $2
			  WHERE c.app_user_id = $1`

	var (
		state        models.StoredState
		requestDate  sql.NullTime
		product      sql.NullString
		isActive     sql.NullBool
		willRenew    sql.NullBool
		expiration   sql.NullTime
		periodType   sql.NullString
		billingIssue sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx, query, appUserID, entitlementID).Scan(
		&state.Email, &state.ManagementURL, &requestDate,
		&product, &isActive, &willRenew, &expiration, &periodType, &billingIssue)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.StoredState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	state.Observed = true
	state.LastRequestDate = timePtr(requestDate)

	if product.Valid {
		snap := &models.Snapshot{
			EntitlementID:          entitlementID,
			ProductIdentifier:      product.String,
			IsActive:               isActive.Bool,
			WillRenew:              willRenew.Bool,
			ExpirationDate:         timePtr(expiration),
			PeriodType:             models.PeriodType(periodType.String),
			BillingIssueDetectedAt: timePtr(billingIssue),
		}
		state.EverHeld = snap
		if snap.IsActive {
			state.Current = snap
		}
	}
	return &state, nil
}

// SaveCustomerInfo сохраняет полученное от SDK состояние клиента в одной транзакции.
// Права, отсутствующие в info.Active, помечаются неактивными.
func (s *Storage) SaveCustomerInfo(ctx context.Context, appUserID string, info models.CustomerInfo) error {
	const op = "storage.SaveCustomerInfo"

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var requestDate *time.Time
	if !info.RequestDate.IsZero() {
		requestDate = &info.RequestDate
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO customers (app_user_id, email, management_url, last_request_date)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (app_user_id) DO UPDATE
			  SET email = COALESCE(NULLIF(EXCLUDED.email, ''), customers.email),
			      management_url = EXCLUDED.management_url,
			      last_request_date = GREATEST(customers.last_request_date, EXCLUDED.last_request_date),
			      updated_at = NOW()`,
		appUserID, info.Email, info.ManagementURL, requestDate)
	if err != nil {
		return fmt.Errorf("%s: upsert customer: %w", op, err)
	}

	_, err = tx.ExecContext(ctx, `UPDATE entitlements SET is_active = false, updated_at = NOW()
			  WHERE app_user_id = $1 AND is_active`, appUserID)
	if err != nil {
		return fmt.Errorf("%s: reset active: %w", op, err)
	}

	query := `INSERT INTO entitlements (app_user_id, entitlement_id, product_identifier, is_active,
			      will_renew, expiration_date, period_type, billing_issue_detected_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  ON CONFLICT (app_user_id, entitlement_id) DO UPDATE
			  SET product_identifier = EXCLUDED.product_identifier,
			      is_active = EXCLUDED.is_active,
			      will_renew = EXCLUDED.will_renew,
			      expiration_date = EXCLUDED.expiration_date,
			      period_type = EXCLUDED.period_type,
			      billing_issue_detected_at = EXCLUDED.billing_issue_detected_at,
			      updated_at = NOW()`

	for id, snap := range mergeSnapshots(info) {
		_, active := info.Active[id]
		_, err = tx.ExecContext(ctx, query,
			appUserID, id, snap.ProductIdentifier, active && snap.IsActive, snap.WillRenew,
			snap.ExpirationDate, string(snap.PeriodType), snap.BillingIssueDetectedAt)
		if err != nil {
			return fmt.Errorf("%s: upsert entitlement %s: %w", op, id, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FindExpiring возвращает активные права entitlementID, истекающие в интервале [from, to].
func (s *Storage) FindExpiring(ctx context.Context, entitlementID string, from, to time.Time) ([]*models.ExpiringEntitlement, error) {
	const op = "storage.FindExpiring"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT e.app_user_id, c.email, e.product_identifier, e.will_renew,
				e.expiration_date, e.period_type, e.billing_issue_detected_at
			  FROM entitlements e
			  JOIN customers c ON c.app_user_id = e.app_user_id
			  WHERE e.entitlement_id = $1
			    AND e.is_active
			    AND e.expiration_date BETWEEN $2 AND $3
			  ORDER BY e.expiration_date`
	rows, err := s.DB.QueryContext(ctx, query, entitlementID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.ExpiringEntitlement
	for rows.Next() {
		var (
			item         models.ExpiringEntitlement
			expiration   sql.NullTime
			periodType   string
			billingIssue sql.NullTime
		)
		if err := rows.Scan(&item.AppUserID, &item.Email, &item.Snapshot.ProductIdentifier,
			&item.Snapshot.WillRenew, &expiration, &periodType, &billingIssue); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		item.Snapshot.EntitlementID = entitlementID
		item.Snapshot.IsActive = true
		item.Snapshot.ExpirationDate = timePtr(expiration)
		item.Snapshot.PeriodType = models.PeriodType(periodType)
		item.Snapshot.BillingIssueDetectedAt = timePtr(billingIssue)
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// DeleteCustomer удаляет клиента вместе с сохранёнными правами.
func (s *Storage) DeleteCustomer(ctx context.Context, appUserID string) error {
	const op = "storage.DeleteCustomer"

	res, err := s.DB.ExecContext(ctx, `DELETE FROM customers WHERE app_user_id = $1`, appUserID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// mergeSnapshots объединяет All и Active; версия из Active приоритетнее.
func mergeSnapshots(info models.CustomerInfo) map[string]*models.Snapshot {
	res := make(map[string]*models.Snapshot, len(info.All)+len(info.Active))
	for id, s := range info.All {
		if s != nil {
			res[id] = s
		}
	}
	for id, s := range info.Active {
		if s != nil {
			res[id] = s
		}
	}
	return res
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
