// Package session хранит текущий сайт сессии и последнее известное состояние его плана.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/storeplan-sync/internal/cache"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/observable"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
	"github.com/magabrotheeeer/storeplan-sync/internal/models"
	"github.com/magabrotheeeer/storeplan-sync/internal/planstate"
)

// SiteRepository ищет сайты по ID.
type SiteRepository interface {
	GetSite(ctx context.Context, siteID int64) (*models.Site, error)
}

// Service переключает текущий сайт. Изменения публикуются в поток сайтов,
// на который подписан синхронизатор.
type Service struct {
	repo  SiteRepository
	sites *observable.Value[*models.Site]
	log   *slog.Logger
}

// New создаёт сервис сессии.
func New(repo SiteRepository, sites *observable.Value[*models.Site], log *slog.Logger) *Service {
	return &Service{repo: repo, sites: sites, log: log}
}

// Select делает сайт siteID текущим. Ошибка поиска сайта возвращается без изменения текущего сайта.
func (s *Service) Select(ctx context.Context, siteID int64) (*models.Site, error) {
	const op = "session.Select"
	site, err := s.repo.GetSite(ctx, siteID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.sites.Set(site)
	s.log.Info("site selected", sl.Op(op), sl.SiteID(site.ID))
	return site, nil
}

// Logout сбрасывает текущий сайт.
func (s *Service) Logout() {
	s.sites.Set(nil)
	s.log.Info("site cleared", sl.Op("session.Logout"))
}

// Current возвращает текущий сайт или nil.
func (s *Service) Current() *models.Site {
	return s.sites.Get()
}

// StateCache сохраняет значения в JSON-кэше.
type StateCache interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Get(ctx context.Context, key string, result any) (bool, error)
}

type record struct {
	siteID int64
	state  planstate.State
}

// Recorder сохраняет последнее состояние плана сайта в кэш, чтобы его можно было
// показать после перезапуска до завершения новой загрузки.
type Recorder struct {
	cache   StateCache
	ttl     time.Duration
	log     *slog.Logger
	pending chan record
}

// NewRecorder создаёт Recorder. Записи обрабатываются в Run.
func NewRecorder(c StateCache, ttl time.Duration, log *slog.Logger) *Recorder {
	return &Recorder{cache: c, ttl: ttl, log: log, pending: make(chan record, 16)}
}

// Observe ставит состояние в очередь на запись. Не блокируется: при переполнении очереди
// состояние пропускается. Промежуточные состояния NotLoaded и Loading не сохраняются.
func (r *Recorder) Observe(site models.Site, state planstate.State) {
	if state.Kind == planstate.NotLoaded || state.Kind == planstate.Loading {
		return
	}
	select {
	case r.pending <- record{siteID: site.ID, state: state}:
	default:
		r.log.Warn("plan state recorder is busy, state skipped", sl.SiteID(site.ID))
	}
}

// Run записывает состояния до отмены ctx.
func (r *Recorder) Run(ctx context.Context) {
	const op = "session.Recorder.Run"
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-r.pending:
			if err := r.cache.Set(ctx, cache.PlanStateKey(rec.siteID), rec.state, r.ttl); err != nil {
				r.log.Error("failed to persist plan state", sl.Op(op), sl.SiteID(rec.siteID), sl.Err(err))
			}
		}
	}
}

// LastKnown возвращает сохранённое состояние плана сайта.
func (r *Recorder) LastKnown(ctx context.Context, siteID int64) (planstate.State, bool, error) {
	var st planstate.State
	found, err := r.cache.Get(ctx, cache.PlanStateKey(siteID), &st)
	if err != nil {
		return planstate.State{}, false, fmt.Errorf("session.LastKnown: %w", err)
	}
	return st, found, nil
}
