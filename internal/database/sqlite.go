package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // Драйвер SQLite без CGO
)

// OpenSQLite открывает (или создаёт) базу SQLite и применяет миграции lite-режима.
// Пул ограничен одним соединением: SQLite допускает одного писателя,
// а сериализация в пуле исключает SQLITE_BUSY.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия SQLite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка подключения к SQLite %s: %w", path, err)
	}

	if err := MigrateSQLite(db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite открыта", slog.String("path", path))
	return db, nil
}

// MigrateSQLite применяет миграции lite-режима из embedded FS (golang-migrate, драйвер sqlite).
// Повторный вызов на актуальной схеме — no-op.
func MigrateSQLite(db *sql.DB, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, sqliteMigrationsDir)
	if err != nil {
		return fmt.Errorf("ошибка создания источника миграций: %w", err)
	}
	defer source.Close()

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("ошибка инициализации драйвера миграций SQLite: %w", err)
	}

	// m.Close() не вызывается: драйвер закрыл бы переданный *sql.DB.
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("ошибка применения миграций SQLite: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Debug("Миграции SQLite применены",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// SQLPinger адаптирует *sql.DB к интерфейсу Pinger.
type SQLPinger struct {
	DB *sql.DB
}

// Ping проверяет соединение.
func (p SQLPinger) Ping(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}
