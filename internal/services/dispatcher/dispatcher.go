// Package dispatcher периодически забирает наступившие напоминания из хранилища
// и публикует их в RabbitMQ для отправки.
package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
	"github.com/magabrotheeeer/storeplan-sync/internal/metrics"
	"github.com/magabrotheeeer/storeplan-sync/internal/models"
	"github.com/magabrotheeeer/storeplan-sync/internal/rabbitmq"
)

// ReminderStore описывает хранилище запланированных напоминаний.
// Claim снимает напоминание с расписания, только если оно не отменено и не перепланировано
// после Due. Release возвращает его в расписание, Ack удаляет окончательно.
type ReminderStore interface {
	Due(ctx context.Context, now time.Time, limit int) ([]models.Reminder, error)
	Claim(ctx context.Context, r models.Reminder) (bool, error)
	Release(ctx context.Context, r models.Reminder) error
	Ack(ctx context.Context, r models.Reminder) error
}

// Service реализует воркер рассылки наступивших напоминаний.
type Service struct {
	store     ReminderStore
	channel   rabbitmq.Channel
	metrics   *metrics.Metrics
	log       *slog.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

// New создаёт воркер.
func New(store ReminderStore, channel rabbitmq.Channel, m *metrics.Metrics, log *slog.Logger, interval time.Duration, batchSize int) *Service {
	return &Service{
		store:     store,
		channel:   channel,
		metrics:   m,
		log:       log,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Run обрабатывает наступившие напоминания сразу и затем каждые interval до отмены ctx.
func (s *Service) Run(ctx context.Context) {
	s.DispatchDue(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.DispatchDue(ctx)
		}
	}
}

// DispatchDue публикует все напоминания, время которых наступило, и возвращает число опубликованных.
// Напоминание снимается с расписания до публикации и возвращается в него при ошибке публикации.
// Просроченные напоминания публикуются с опозданием.
func (s *Service) DispatchDue(ctx context.Context) int {
	const op = "dispatcher.DispatchDue"
	log := s.log.With(sl.Op(op))

	published := 0
	for {
		due, err := s.store.Due(ctx, s.now(), s.batchSize)
		if err != nil {
			log.Error("failed to load due reminders", sl.Err(err))
			return published
		}
		if len(due) == 0 {
			break
		}

		progress := false
		for _, r := range due {
			tagAttr := slog.String("tag", string(r.Tag))
			claimed, err := s.store.Claim(ctx, r)
			if err != nil {
				log.Error("failed to claim reminder", tagAttr, sl.Err(err))
				s.metrics.ReminderErrors.WithLabelValues("claim").Inc()
				continue
			}
			if !claimed {
				// отменено или перепланировано после Due
				log.Debug("reminder changed before dispatch", tagAttr)
				progress = true
				continue
			}

			msg := models.ReminderMessage{
				MessageID:    uuid.NewString(),
				Tag:          r.Tag,
				Scenario:     r.Scenario,
				SiteID:       r.SiteID,
				TriggerAt:    r.TriggerAt,
				DispatchedAt: s.now().UTC(),
				Payload:      r.Payload,
			}
			if err := rabbitmq.PublishReminder(s.channel, msg); err != nil {
				log.Error("failed to publish reminder", tagAttr, sl.Err(err))
				s.metrics.ReminderErrors.WithLabelValues("publish").Inc()
				if err := s.store.Release(ctx, r); err != nil {
					log.Error("failed to release reminder", tagAttr, sl.Err(err))
				}
				continue
			}
			if err := s.store.Ack(ctx, r); err != nil {
				log.Error("failed to ack reminder", tagAttr, sl.Err(err))
				s.metrics.ReminderErrors.WithLabelValues("ack").Inc()
			}
			s.metrics.RemindersDispatched.Inc()
			published++
			progress = true
		}

		// неполная пачка или ни одного подтверждения: остальное на следующем тике
		if len(due) < s.batchSize || !progress {
			break
		}
	}

	if published > 0 {
		log.Info("reminders dispatched", slog.Int("count", published))
	}
	return published
}
