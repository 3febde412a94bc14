// Package featureflag отвечает на вопрос, включён ли фича-флаг.
// Значение из Redis-хэша feature_flags имеет приоритет над значением из конфигурации.
package featureflag

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/storeplan-sync/internal/lib/sl"
)

// FlagsKey указывает хэш Redis с переопределениями флагов.
const FlagsKey = "feature_flags"

// Flags — источник фича-флагов.
type Flags struct {
	db       *redis.Client
	defaults map[string]bool
	log      *slog.Logger
}

// New создаёт источник флагов. db может быть nil, тогда используются только значения по умолчанию.
func New(db *redis.Client, defaults map[string]bool, log *slog.Logger) *Flags {
	d := make(map[string]bool, len(defaults))
	for k, v := range defaults {
		d[k] = v
	}
	return &Flags{db: db, defaults: d, log: log}
}

// IsEnabled возвращает значение флага. Ошибки Redis логируются, используется значение по умолчанию.
func (f *Flags) IsEnabled(ctx context.Context, flag string) bool {
	const op = "featureflag.IsEnabled"
	if f.db == nil {
		return f.defaults[flag]
	}

	raw, err := f.db.HGet(ctx, FlagsKey, flag).Result()
	if errors.Is(err, redis.Nil) {
		return f.defaults[flag]
	}
	if err != nil {
		f.log.Warn("failed to read feature flag", sl.Op(op), slog.String("flag", flag), sl.Err(err))
		return f.defaults[flag]
	}

	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		f.log.Warn("invalid feature flag value", sl.Op(op), slog.String("flag", flag), slog.String("value", raw))
		return f.defaults[flag]
	}
	return enabled
}

// Set записывает переопределение флага в Redis.
func (f *Flags) Set(ctx context.Context, flag string, enabled bool) error {
	if f.db == nil {
		return errors.New("featureflag.Set: redis is not configured")
	}
	return f.db.HSet(ctx, FlagsKey, flag, strconv.FormatBool(enabled)).Err()
}
