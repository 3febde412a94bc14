package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/storeplan-sync/internal/models"
)

// LoadCurrentPlan возвращает текущий план сайта. Если плана нет, возвращается models.ErrNoCurrentPlan.
func (s *Storage) LoadCurrentPlan(ctx context.Context, siteID int64) (models.PlanSnapshot, error) {
	const op = "storage.LoadCurrentPlan"
	select {
	case <-ctx.Done():
		return models.PlanSnapshot{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT plan_id, plan_slug, is_free_trial, subscribed_date, expiry_date
			  FROM site_plans WHERE site_id = $1`
	var (
		plan       models.PlanSnapshot
		subscribed sql.NullTime
		expiry     sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx, query, siteID).Scan(
		&plan.ID, &plan.Name, &plan.IsFreeTrial, &subscribed, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PlanSnapshot{}, fmt.Errorf("%s: %w", op, models.ErrNoCurrentPlan)
	}
	if err != nil {
		return models.PlanSnapshot{}, fmt.Errorf("%s: %w", op, err)
	}
	if subscribed.Valid {
		t := subscribed.Time.UTC()
		plan.SubscribedDate = &t
	}
	if expiry.Valid {
		t := expiry.Time.UTC()
		plan.ExpiryDate = &t
	}
	return plan, nil
}

// SetCurrentPlan записывает текущий план сайта, заменяя предыдущий.
func (s *Storage) SetCurrentPlan(ctx context.Context, siteID int64, plan models.PlanSnapshot) error {
	const op = "storage.SetCurrentPlan"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO site_plans (site_id, plan_id, plan_slug, is_free_trial, subscribed_date, expiry_date)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (site_id) DO UPDATE
			  SET plan_id = EXCLUDED.plan_id,
			      plan_slug = EXCLUDED.plan_slug,
			      is_free_trial = EXCLUDED.is_free_trial,
			      subscribed_date = EXCLUDED.subscribed_date,
			      expiry_date = EXCLUDED.expiry_date,
			      updated_at = NOW()`
	_, err := s.DB.ExecContext(ctx, query,
		siteID, plan.ID, plan.Name, plan.IsFreeTrial, plan.SubscribedDate, plan.ExpiryDate)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeleteCurrentPlan удаляет текущий план сайта.
func (s *Storage) DeleteCurrentPlan(ctx context.Context, siteID int64) error {
	const op = "storage.DeleteCurrentPlan"
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM site_plans WHERE site_id = $1`, siteID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
