package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/storeplan-sync/internal/models"
)

// GetSite возвращает сайт по ID или ErrSiteNotFound.
func (s *Storage) GetSite(ctx context.Context, siteID int64) (*models.Site, error) {
	const op = "storage.GetSite"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT site_id, name, url, owner_email, is_wpcom FROM sites WHERE site_id = $1`
	var site models.Site
	err := s.DB.QueryRowContext(ctx, query, siteID).Scan(
		&site.ID, &site.Name, &site.URL, &site.OwnerEmail, &site.IsWordPressComStore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrSiteNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &site, nil
}

// UpsertSite создаёт сайт или обновляет существующий.
func (s *Storage) UpsertSite(ctx context.Context, site models.Site) error {
	const op = "storage.UpsertSite"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO sites (site_id, name, url, owner_email, is_wpcom)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (site_id) DO UPDATE
			  SET name = EXCLUDED.name,
			      url = EXCLUDED.url,
			      owner_email = EXCLUDED.owner_email,
			      is_wpcom = EXCLUDED.is_wpcom,
			      updated_at = NOW()`
	_, err := s.DB.ExecContext(ctx, query,
		site.ID, site.Name, site.URL, site.OwnerEmail, site.IsWordPressComStore)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
