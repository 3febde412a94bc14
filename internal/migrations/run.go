// Package migrations применяет SQL-миграции из каталога migrations.
package migrations

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	pgxv5 "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Run применяет все неприменённые миграции и возвращает версию схемы.
// Повторный запуск не является ошибкой.
func Run(db *sql.DB, path string) (uint, error) {
	const op = "migrations.Run"
	driver, err := pgxv5.WithInstance(db, &pgxv5.Config{})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+path, "pgx_v5", driver)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if dirty {
		return version, fmt.Errorf("%s: schema version %d is dirty", op, version)
	}
	return version, nil
}
