package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
	"github.com/nick2bad4u/uptime-watcher/internal/storage"
)

// SettingsRepository implements core.SettingsRepository.
type SettingsRepository struct {
	engine *storage.Engine
	logger *slog.Logger
}

// NewSettingsRepository constructs a SettingsRepository.
func NewSettingsRepository(engine *storage.Engine, logger *slog.Logger) *SettingsRepository {
	return &SettingsRepository{engine: engine, logger: logger}
}

var _ core.SettingsRepository = (*SettingsRepository)(nil)

// Get returns a setting's value and whether it was present.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	row := r.engine.DB().QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, core.NewTransactionError("SettingsRepository.Get", "query failed", err)
	}
	return value, true, nil
}

// Set inserts or overwrites a setting.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	if !core.IsSafeIdentifier(key) {
		return core.NewValidationError("SettingsRepository.Set", "key must be non-empty and control-character free", nil)
	}
	_, err := r.engine.DB().ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return core.NewTransactionError("SettingsRepository.Set", "upsert failed", err)
	}
	return nil
}

// All returns every setting row.
func (r *SettingsRepository) All(ctx context.Context) ([]core.Setting, error) {
	rows, err := r.engine.DB().QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, core.NewTransactionError("SettingsRepository.All", "query failed", err)
	}
	defer rows.Close()

	var settings []core.Setting
	for rows.Next() {
		var s core.Setting
		if err := rows.Scan(&s.Key, &s.Value); err != nil {
			return nil, core.NewTransactionError("SettingsRepository.All", "row scan failed", err)
		}
		settings = append(settings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewTransactionError("SettingsRepository.All", "row iteration failed", err)
	}
	return settings, nil
}
