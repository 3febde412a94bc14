package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/storeplan-sync/internal/models"
	"github.com/magabrotheeeer/storeplan-sync/internal/reminder"
)

const (
	remindersKey    = "reminders"
	remindersDueKey = "reminders:due"
	maxTxRetries    = 5
)

// ReminderStore хранит запланированные напоминания: тело в хэше reminders,
// время срабатывания в отсортированном множестве reminders:due.
type ReminderStore struct {
	db *redis.Client
}

// NewReminderStore создаёт хранилище напоминаний поверх подключения кэша.
func NewReminderStore(c *Cache) *ReminderStore {
	return &ReminderStore{db: c.Db}
}

// Schedule сохраняет напоминание. Напоминание с тем же тегом заменяется.
func (s *ReminderStore) Schedule(ctx context.Context, r models.Reminder) error {
	const op = "cache.ReminderStore.Schedule"
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	_, err = s.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, remindersKey, string(r.Tag), data)
		pipe.ZAdd(ctx, remindersDueKey, redis.Z{
			Score:  triggerScore(r),
			Member: string(r.Tag),
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Cancel удаляет напоминание по тегу. Отсутствующий тег не является ошибкой.
func (s *ReminderStore) Cancel(ctx context.Context, tag models.ScenarioTag) error {
	const op = "cache.ReminderStore.Cancel"
	if err := s.remove(ctx, tag); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Claim снимает напоминание r с расписания перед публикацией. false, если напоминание
// уже отменено или перепланировано на другое время: такое напоминание публиковать нельзя.
// Тело остаётся в хэше до Ack или Release.
func (s *ReminderStore) Claim(ctx context.Context, r models.Reminder) (bool, error) {
	const op = "cache.ReminderStore.Claim"
	claimed := false
	err := s.watch(ctx, func(tx *redis.Tx) error {
		claimed = false
		score, err := tx.ZScore(ctx, remindersDueKey, string(r.Tag)).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if score != triggerScore(r) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, remindersDueKey, string(r.Tag))
			return nil
		})
		claimed = err == nil
		return err
	}, remindersDueKey)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return claimed, nil
}

// Release возвращает захваченное напоминание в расписание после неудачной публикации.
// Отменённое или уже перепланированное напоминание не трогается.
func (s *ReminderStore) Release(ctx context.Context, r models.Reminder) error {
	const op = "cache.ReminderStore.Release"
	err := s.watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, remindersKey, string(r.Tag)).Result()
		if err != nil || !exists {
			return err
		}
		if _, err = tx.ZScore(ctx, remindersDueKey, string(r.Tag)).Result(); err == nil {
			return nil
		} else if !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZAdd(ctx, remindersDueKey, redis.Z{Score: triggerScore(r), Member: string(r.Tag)})
			return nil
		})
		return err
	}, remindersKey, remindersDueKey)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Ack удаляет тело захваченного напоминания после публикации.
// Если после Claim напоминание перепланировали, новая версия сохраняется.
func (s *ReminderStore) Ack(ctx context.Context, r models.Reminder) error {
	const op = "cache.ReminderStore.Ack"
	err := s.watch(ctx, func(tx *redis.Tx) error {
		if _, err := tx.ZScore(ctx, remindersDueKey, string(r.Tag)).Result(); err == nil {
			return nil
		} else if !errors.Is(err, redis.Nil) {
			return err
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, remindersKey, string(r.Tag))
			return nil
		})
		return err
	}, remindersDueKey)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// watch выполняет оптимистичную транзакцию fn, повторяя её при конкурентном изменении keys.
func (s *ReminderStore) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	var err error
	for range maxTxRetries {
		err = s.db.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

func triggerScore(r models.Reminder) float64 {
	return float64(r.TriggerAt.Unix())
}

func (s *ReminderStore) remove(ctx context.Context, tag models.ScenarioTag) error {
	_, err := s.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, remindersKey, string(tag))
		pipe.ZRem(ctx, remindersDueKey, string(tag))
		return nil
	})
	return err
}

// Due возвращает не более limit напоминаний со временем срабатывания не позже now,
// в порядке возрастания времени.
func (s *ReminderStore) Due(ctx context.Context, now time.Time, limit int) ([]models.Reminder, error) {
	const op = "cache.ReminderStore.Due"
	tags, err := s.db.ZRangeByScore(ctx, remindersDueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	reminders, err := s.load(ctx, tags)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return reminders, nil
}

// Pending возвращает все запланированные напоминания сайта по времени срабатывания.
func (s *ReminderStore) Pending(ctx context.Context, siteID int64) ([]models.Reminder, error) {
	const op = "cache.ReminderStore.Pending"
	tags, err := s.db.ZRange(ctx, remindersDueKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	own := make([]string, 0, len(tags))
	for _, tag := range tags {
		_, id, err := reminder.Parse(models.ScenarioTag(tag))
		if err != nil || id != siteID {
			continue
		}
		own = append(own, tag)
	}
	reminders, err := s.load(ctx, own)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return reminders, nil
}

func (s *ReminderStore) load(ctx context.Context, tags []string) ([]models.Reminder, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	values, err := s.db.HMGet(ctx, remindersKey, tags...).Result()
	if err != nil {
		return nil, err
	}
	reminders := make([]models.Reminder, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// индекс без тела: остаток прерванной записи
			s.db.ZRem(ctx, remindersDueKey, tags[i])
			continue
		}
		var r models.Reminder
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return nil, fmt.Errorf("decode %s: %w", tags[i], err)
		}
		reminders = append(reminders, r)
	}
	return reminders, nil
}
