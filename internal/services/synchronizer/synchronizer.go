// Package synchronizer связывает автомат состояния плана с политикой напоминаний
// и внешними исполнителями: источником тарифов и планировщиком уведомлений.
// Сервис реагирует на смену текущего сайта и повторные загрузки по запросу.
package synchronizer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/magabrotheeeer/storeplan-sync/internal/lib/observable"
	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
	"github.com/magabrotheeeer/storeplan-sync/internal/metrics"
	"github.com/magabrotheeeer/storeplan-sync/internal/models"
	"github.com/magabrotheeeer/storeplan-sync/internal/planstate"
	"github.com/magabrotheeeer/storeplan-sync/internal/reminder"
)

// PlanFetcher загружает текущий план сайта. При отсутствии плана возвращает models.ErrNoCurrentPlan.
type PlanFetcher interface {
	LoadCurrentPlan(ctx context.Context, siteID int64) (models.PlanSnapshot, error)
}

// NotificationScheduler планирует и отменяет напоминания. Обе операции идемпотентны:
// Schedule заменяет напоминание с тем же тегом, Cancel отсутствующего тега ничего не делает.
type NotificationScheduler interface {
	Schedule(ctx context.Context, r models.Reminder) error
	Cancel(ctx context.Context, tag models.ScenarioTag) error
}

// FeatureFlags возвращает значения фича-флагов.
type FeatureFlags interface {
	IsEnabled(ctx context.Context, flag string) bool
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithNotificationTimeout ограничивает время планирования напоминаний после загрузки плана.
func WithNotificationTimeout(d time.Duration) Option {
	return func(s *Service) { s.notificationTimeout = d }
}

// WithOutcomeHook регистрирует обработчик применённых результатов загрузки.
// Вызывается из горутины загрузки вне блокировок автомата.
func WithOutcomeHook(hook func(models.Site, planstate.State)) Option {
	return func(s *Service) { s.onOutcome = hook }
}

// Service реализует синхронизатор тарифного плана текущего сайта.
type Service struct {
	machine   *planstate.Machine
	sites     *observable.Value[*models.Site]
	fetcher   PlanFetcher
	scheduler NotificationScheduler
	flags     FeatureFlags
	metrics   *metrics.Metrics
	log       *slog.Logger

	now                 func() time.Time
	notificationTimeout time.Duration
	onOutcome           func(models.Site, planstate.State)

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	closed   bool
	wg       sync.WaitGroup
	siteSub  *observable.Subscription
	stateSub *observable.Subscription
}

// New создаёт синхронизатор. Все зависимости передаются явно.
func New(
	sites *observable.Value[*models.Site],
	fetcher PlanFetcher,
	scheduler NotificationScheduler,
	flags FeatureFlags,
	capability planstate.CapabilityChecker,
	m *metrics.Metrics,
	log *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		machine:             planstate.NewMachine(capability),
		sites:               sites,
		fetcher:             fetcher,
		scheduler:           scheduler,
		flags:               flags,
		metrics:             m,
		log:                 log,
		now:                 time.Now,
		notificationTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start подписывается на поток текущего сайта. Текущий сайт обрабатывается сразу.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.mu.Unlock()

	s.stateSub = s.machine.Subscribe(func(st planstate.State) {
		s.metrics.SetPlanState(string(st.Kind))
	})
	s.siteSub = s.sites.Subscribe(s.onSiteChanged)
}

// Close отписывается от потока сайтов, отменяет загрузки и ждёт их завершения.
func (s *Service) Close() {
	s.mu.Lock()
	if !s.started || s.closed {
		s.closed = true
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancel()
	s.mu.Unlock()

	s.siteSub.Cancel()
	s.stateSub.Cancel()
	s.wg.Wait()
}

// ReloadPlan повторяет загрузку плана текущего сайта, например по кнопке «Повторить».
// Возвращает true, если загрузка запущена.
func (s *Service) ReloadPlan() bool {
	req, ok := s.machine.Reload()
	if !ok {
		return false
	}
	return s.launch(req)
}

// State возвращает текущее состояние плана.
func (s *Service) State() planstate.State {
	return s.machine.State()
}

// Subscribe подписывает обработчик на изменения состояния плана.
func (s *Service) Subscribe(onChange func(planstate.State)) *observable.Subscription {
	return s.machine.Subscribe(onChange)
}

// Site возвращает текущий сайт или nil.
func (s *Service) Site() *models.Site {
	return s.machine.Site()
}

// WaitIdle ждёт завершения запущенных загрузок и планирования напоминаний.
func (s *Service) WaitIdle() {
	s.wg.Wait()
}

func (s *Service) onSiteChanged(site *models.Site) {
	if site == nil {
		s.log.Info("current site cleared")
	} else {
		s.log.Info("current site changed", sl.SiteID(site.ID))
	}
	req, ok := s.machine.CurrentSite(site)
	if ok {
		s.launch(req)
	}
}

func (s *Service) launch(req planstate.FetchRequest) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.closed {
		return false
	}
	ctx := s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, req)
	}()
	return true
}

func (s *Service) run(ctx context.Context, req planstate.FetchRequest) {
	const op = "synchronizer.run"

	for {
		log := s.log.With(sl.Op(op), sl.SiteID(req.Site.ID))

		plan, err := s.fetcher.LoadCurrentPlan(ctx, req.Site.ID)
		out := s.machine.Complete(req, plan, err)

		switch {
		case !out.Applied:
			log.Debug("discarded plan for a superseded site")
			s.metrics.PlanFetches.WithLabelValues(metrics.FetchStale).Inc()
		case err == nil:
			log.Info("plan loaded", slog.String("plan_id", plan.ID), slog.Bool("free_trial", plan.IsFreeTrial))
			s.metrics.PlanFetches.WithLabelValues(metrics.FetchLoaded).Inc()
		case errors.Is(err, models.ErrNoCurrentPlan):
			log.Info("site has no current plan")
			s.metrics.PlanFetches.WithLabelValues(metrics.FetchExpired).Inc()
		default:
			log.Error("failed to load plan", sl.Err(err))
			s.metrics.PlanFetches.WithLabelValues(metrics.FetchFailed).Inc()
		}

		if out.Applied && s.onOutcome != nil {
			s.onOutcome(req.Site, out.State)
		}
		if out.Applied && out.State.Kind == planstate.Loaded {
			s.syncReminders(ctx, *out.State.Plan, req.Site)
		}

		if out.Next == nil {
			return
		}
		req = *out.Next
	}
}

// syncReminders планирует и отменяет напоминания для загруженного плана.
// Ошибки планировщика только логируются и не влияют на состояние плана.
func (s *Service) syncReminders(ctx context.Context, plan models.PlanSnapshot, site models.Site) {
	const op = "synchronizer.syncReminders"
	log := s.log.With(sl.Op(op), sl.SiteID(site.ID))

	flags := reminder.Flags{
		FreeTrialSurvey24h: s.flags.IsEnabled(ctx, reminder.FlagFreeTrialSurvey24h),
	}
	res := reminder.Compute(plan, site, s.now(), flags)
	if len(res.ToSchedule) == 0 && len(res.ToCancel) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.notificationTimeout)
	defer cancel()

	var g errgroup.Group
	for _, r := range res.ToSchedule {
		g.Go(func() error {
			if err := s.scheduler.Schedule(ctx, r); err != nil {
				log.Error("failed to schedule reminder", slog.String("tag", string(r.Tag)), sl.Err(err))
				s.metrics.ReminderErrors.WithLabelValues("schedule").Inc()
				return err
			}
			s.metrics.RemindersScheduled.Inc()
			log.Debug("reminder scheduled", slog.String("tag", string(r.Tag)), slog.Time("trigger_at", r.TriggerAt))
			return nil
		})
	}
	for _, tag := range res.ToCancel {
		g.Go(func() error {
			if err := s.scheduler.Cancel(ctx, tag); err != nil {
				log.Error("failed to cancel reminder", slog.String("tag", string(tag)), sl.Err(err))
				s.metrics.ReminderErrors.WithLabelValues("cancel").Inc()
				return err
			}
			s.metrics.RemindersCancelled.Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn("reminders partially synchronized", sl.Err(err))
		return
	}
	log.Info("reminders synchronized",
		slog.Int("scheduled", len(res.ToSchedule)),
		slog.Int("cancelled", len(res.ToCancel)))
}
