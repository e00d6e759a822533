// Package storage wraps database/sql over the pure-Go modernc.org/sqlite
// driver, providing transaction helpers and goose-driven schema migrations.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
)

//go:embed all:../../migrations
var embeddedMigrations embed.FS

var forbiddenPathPrefixes = []string{"/etc", "/sys", "/proc", "/dev"}

// Engine owns the database connection and exposes transaction helpers used
// by every repository.
type Engine struct {
	db     *sql.DB
	logger *slog.Logger
	path   string
}

// Open validates path, opens a WAL-mode SQLite connection, enables foreign
// keys, and runs pending goose migrations. A failed migration is returned
// as a core.AppError with CodeMigration, which callers treat as fatal.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Engine, error) {
	if path == "" {
		return nil, core.NewConfigurationError("storage.Open", "path cannot be empty", nil)
	}
	if strings.Contains(path, "..") {
		return nil, core.NewConfigurationError("storage.Open", "path must not contain '..'", nil)
	}
	for _, prefix := range forbiddenPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return nil, core.NewConfigurationError("storage.Open", fmt.Sprintf("forbidden path prefix %s", prefix), nil)
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, core.NewConfigurationError("storage.Open", "failed to create data directory", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, core.NewConfigurationError("storage.Open", "failed to open sqlite connection", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, core.NewConfigurationError("storage.Open", "sqlite ping failed", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, core.NewConfigurationError("storage.Open", "failed to enable foreign keys", err)
	}

	e := &Engine{db: db, logger: logger, path: path}
	if err := e.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	if err := os.Chmod(path, 0o600); err != nil {
		logger.Warn("failed to set database file permissions", "path", path, "error", err)
	}

	logger.Info("storage engine ready", "path", path, "wal_mode", true)
	return e, nil
}

func (e *Engine) migrate() error {
	goose.SetBaseFS(embeddedMigrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return core.NewMigrationError("storage.migrate", "failed to set goose dialect", err)
	}
	if err := goose.Up(e.db, "migrations"); err != nil {
		return core.NewMigrationError("storage.migrate", "schema migration failed", err)
	}
	return nil
}

// DB returns the underlying *sql.DB for repositories that need direct
// query/exec access outside a transaction.
func (e *Engine) DB() *sql.DB { return e.db }

// Close closes the underlying connection pool.
func (e *Engine) Close() error { return e.db.Close() }

// Transaction runs fn within a transaction, committing on nil return and
// rolling back otherwise. Panics inside fn are rolled back and re-panicked.
func (e *Engine) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, txErr := e.db.BeginTx(ctx, nil)
	if txErr != nil {
		return core.NewTransactionError("storage.Transaction", "failed to begin transaction", txErr)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			e.logger.Error("rollback failed after transaction error", "error", rbErr, "original_error", err)
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return core.NewTransactionError("storage.Transaction", "failed to commit transaction", err)
	}
	return nil
}

// VacuumInto performs SQLite's native hot-backup primitive into destPath,
// used by the save-sqlite-backup IPC handler.
func (e *Engine) VacuumInto(ctx context.Context, destPath string) error {
	_, err := e.db.ExecContext(ctx, "VACUUM INTO ?", destPath)
	if err != nil {
		return core.NewTransactionError("storage.VacuumInto", "vacuum backup failed", err)
	}
	return nil
}
