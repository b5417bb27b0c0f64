package migration

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// dialects maps database/sql driver names to goose dialects and migration directories.
var dialects = map[string]string{
	"pgx":      "postgres",
	"postgres": "postgres",
	"sqlite":   "sqlite3",
	"sqlite3":  "sqlite3",
}

var migrationDirs = map[string]string{
	"postgres": "migrations/postgres",
	"sqlite3":  "migrations/sqlite",
}

// Dialect returns the goose dialect for a driver name.
func Dialect(driver string) (string, error) {
	d, ok := dialects[driver]
	if !ok {
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
	return d, nil
}

// setup points goose at the embedded migrations of the driver's dialect.
// goose keeps this as package state, so callers must not migrate two dialects concurrently.
func setup(driver string, logger *slog.Logger) error {
	dialect, err := Dialect(driver)
	if err != nil {
		return err
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	sub, err := fs.Sub(migrationsFS, migrationDirs[dialect])
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	goose.SetBaseFS(sub)
	goose.SetLogger(gooseLogger{logger})
	return nil
}

// EnsureMigrated applies all pending migrations for the files schema.
func EnsureMigrated(ctx context.Context, db *sql.DB, driver string, logger *slog.Logger) error {
	logger = logger.With(slog.String("component", "database"), slog.String("driver", driver))
	start := time.Now()

	logger.Info("db_migration_start")
	if err := setup(driver, logger); err != nil {
		logger.Error("db_migration_failed", slog.String("error", err.Error()))
		return err
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		logger.Error("db_migration_failed",
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return fmt.Errorf("run migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	logger.Info("db_migration_success",
		slog.Int64("version", version),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

// Rollback reverts the most recent migration.
func Rollback(ctx context.Context, db *sql.DB, driver string, logger *slog.Logger) error {
	logger = logger.With(slog.String("component", "database"), slog.String("driver", driver))
	if err := setup(driver, logger); err != nil {
		return err
	}
	if err := goose.DownContext(ctx, db, "."); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	logger.Info("db_migration_rollback")
	return nil
}

type gooseLogger struct {
	l *slog.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.l.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.l.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
