// Package sl содержит вспомогательные функции для работы с логгером slog.
package sl

import (
	"io"
	"log/slog"
)

// Err возвращает slog.Attr с ключом "error" и текстом ошибки.
// Для nil возвращается пустая строка, чтобы ветки без ошибки можно было логировать тем же вызовом.
//
// Пример:
//
//	log.Error("failed to load plan", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Op возвращает атрибут с именем операции в формате "pkg.Func".
func Op(op string) slog.Attr {
	return slog.String("op", op)
}

// SiteID возвращает атрибут с идентификатором сайта.
func SiteID(id int64) slog.Attr {
	return slog.Int64("site_id", id)
}

// Окружения, определяющие уровень логирования.
const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"
)

// SetupLogger создаёт текстовый логгер: local и dev пишут debug, prod и остальные пишут info.
func SetupLogger(env string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch env {
	case EnvLocal, EnvDev:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
