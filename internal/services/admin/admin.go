// Package admin управляет справочными данными синхронизатора: сайтами, их текущими
// планами и переопределениями фича-флагов.
package admin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/storeplan-sync/internal/cache"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/observable"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
	"github.com/magabrotheeeer/storeplan-sync/internal/models"
)

// Repository хранит сайты и их планы.
type Repository interface {
	GetSite(ctx context.Context, siteID int64) (*models.Site, error)
	UpsertSite(ctx context.Context, site models.Site) error
	SetCurrentPlan(ctx context.Context, siteID int64, plan models.PlanSnapshot) error
	DeleteCurrentPlan(ctx context.Context, siteID int64) error
}

// StateCache удаляет сохранённое состояние плана.
type StateCache interface {
	Invalidate(ctx context.Context, key string) error
}

// Flags записывает переопределения фича-флагов.
type Flags interface {
	Set(ctx context.Context, flag string, enabled bool) error
}

// Reloader перезапускает загрузку плана текущего сайта.
type Reloader interface {
	ReloadPlan() bool
}

// Service применяет изменения и, если они касаются текущего сайта, сразу отражает их в синхронизаторе.
type Service struct {
	repo     Repository
	cache    StateCache
	flags    Flags
	sites    *observable.Value[*models.Site]
	reloader Reloader
	log      *slog.Logger
}

// New создаёт сервис.
func New(repo Repository, c StateCache, flags Flags, sites *observable.Value[*models.Site], reloader Reloader, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    c,
		flags:    flags,
		sites:    sites,
		reloader: reloader,
		log:      log,
	}
}

// UpsertSite сохраняет сайт. Если это текущий сайт, синхронизатор получает обновлённую копию
// и заново проверяет поддержку API тарифов.
func (s *Service) UpsertSite(ctx context.Context, site models.Site) error {
	const op = "admin.UpsertSite"
	if err := s.repo.UpsertSite(ctx, site); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if cur := s.sites.Get(); cur != nil && cur.ID == site.ID {
		s.sites.Set(&site)
	}
	s.log.Info("site saved", sl.Op(op), sl.SiteID(site.ID))
	return nil
}

// SetPlan заменяет текущий план сайта. true, если для текущего сайта запущена повторная загрузка.
func (s *Service) SetPlan(ctx context.Context, siteID int64, plan models.PlanSnapshot) (bool, error) {
	const op = "admin.SetPlan"
	if _, err := s.repo.GetSite(ctx, siteID); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.SetCurrentPlan(ctx, siteID, plan); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("plan saved", sl.Op(op), sl.SiteID(siteID), slog.String("plan_id", plan.ID))
	return s.planChanged(ctx, siteID), nil
}

// DeletePlan удаляет текущий план сайта. Следующая загрузка даст Expired.
func (s *Service) DeletePlan(ctx context.Context, siteID int64) (bool, error) {
	const op = "admin.DeletePlan"
	if _, err := s.repo.GetSite(ctx, siteID); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.repo.DeleteCurrentPlan(ctx, siteID); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("plan deleted", sl.Op(op), sl.SiteID(siteID))
	return s.planChanged(ctx, siteID), nil
}

// SetFlag записывает переопределение флага.
func (s *Service) SetFlag(ctx context.Context, flag string, enabled bool) error {
	const op = "admin.SetFlag"
	if err := s.flags.Set(ctx, flag, enabled); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("feature flag set", sl.Op(op), slog.String("flag", flag), slog.Bool("enabled", enabled))
	return nil
}

func (s *Service) planChanged(ctx context.Context, siteID int64) bool {
	// сохранённое состояние больше не соответствует плану
	if err := s.cache.Invalidate(ctx, cache.PlanStateKey(siteID)); err != nil {
		s.log.Warn("failed to invalidate plan state", sl.SiteID(siteID), sl.Err(err))
	}
	if cur := s.sites.Get(); cur != nil && cur.ID == siteID {
		return s.reloader.ReloadPlan()
	}
	return false
}
