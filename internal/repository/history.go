package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
	"github.com/nick2bad4u/uptime-watcher/internal/storage"
)

// HistoryRepository implements core.HistoryRepository.
type HistoryRepository struct {
	engine *storage.Engine
	logger *slog.Logger
}

// NewHistoryRepository constructs a HistoryRepository.
func NewHistoryRepository(engine *storage.Engine, logger *slog.Logger) *HistoryRepository {
	return &HistoryRepository{engine: engine, logger: logger}
}

var _ core.HistoryRepository = (*HistoryRepository)(nil)

// Insert appends one history row, opening its own transaction.
func (r *HistoryRepository) Insert(ctx context.Context, e core.HistoryEntry) error {
	return r.engine.Transaction(ctx, func(tx *sql.Tx) error {
		return r.InsertTx(ctx, tx, e)
	})
}

// InsertTx is the transaction-scoped variant used by the monitor checker,
// which writes the history row and the monitor status update atomically.
func (r *HistoryRepository) InsertTx(ctx context.Context, tx *sql.Tx, e core.HistoryEntry) error {
	if err := core.Validator().Struct(e); err != nil {
		return core.NewValidationError("HistoryRepository.Insert", "history entry failed validation", err)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO history (monitor_id, timestamp, status, response_time, details) VALUES (?, ?, ?, ?, ?)
	`, e.MonitorID, e.Timestamp.UnixMilli(), string(e.Status), int64(e.ResponseTime), e.Details)
	if err != nil {
		return core.NewTransactionError("HistoryRepository.Insert", "insert failed", err)
	}
	return nil
}

// FindByMonitorID returns history rows for monitorID newest first, bounded
// by limit/offset.
func (r *HistoryRepository) FindByMonitorID(ctx context.Context, monitorID string, limit, offset int) ([]core.HistoryEntry, error) {
	rows, err := r.engine.DB().QueryContext(ctx, `
		SELECT monitor_id, timestamp, status, response_time, details FROM history
		WHERE monitor_id = ? ORDER BY timestamp DESC LIMIT ? OFFSET ?
	`, monitorID, limit, offset)
	if err != nil {
		return nil, core.NewTransactionError("HistoryRepository.FindByMonitorID", "query failed", err)
	}
	defer rows.Close()

	var entries []core.HistoryEntry
	for rows.Next() {
		var (
			e            core.HistoryEntry
			timestampMS  int64
			responseTime int64
		)
		if err := rows.Scan(&e.MonitorID, &timestampMS, &e.Status, &responseTime, &e.Details); err != nil {
			return nil, core.NewTransactionError("HistoryRepository.FindByMonitorID", "row scan failed", err)
		}
		e.Timestamp = time.UnixMilli(timestampMS)
		e.ResponseTime = time.Duration(responseTime)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewTransactionError("HistoryRepository.FindByMonitorID", "row iteration failed", err)
	}
	return entries, nil
}

// CountForMonitor reports how many history rows exist for monitorID.
func (r *HistoryRepository) CountForMonitor(ctx context.Context, monitorID string) (int, error) {
	var n int
	row := r.engine.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM history WHERE monitor_id = ?`, monitorID)
	if err := row.Scan(&n); err != nil {
		return 0, core.NewTransactionError("HistoryRepository.CountForMonitor", "count failed", err)
	}
	return n, nil
}

// PruneOldest deletes the oldest rows for monitorID beyond the most recent
// keep entries, returning the number of rows removed. The monitor checker
// uses the Tx variant after an insert, on every PruneEvery-th check, to
// hold the ring bound described by historyLimit.
func (r *HistoryRepository) PruneOldest(ctx context.Context, monitorID string, keep int) (int, error) {
	var removed int
	err := r.engine.Transaction(ctx, func(tx *sql.Tx) error {
		var txErr error
		removed, txErr = r.PruneOldestTx(ctx, tx, monitorID, keep)
		return txErr
	})
	return removed, err
}

// PruneOldestTx is the transaction-scoped variant, typically run in the
// same transaction as the triggering Insert.
func (r *HistoryRepository) PruneOldestTx(ctx context.Context, tx *sql.Tx, monitorID string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := tx.ExecContext(ctx, `
		DELETE FROM history WHERE monitor_id = ? AND rowid NOT IN (
			SELECT rowid FROM history WHERE monitor_id = ? ORDER BY timestamp DESC LIMIT ?
		)
	`, monitorID, monitorID, keep)
	if err != nil {
		return 0, core.NewTransactionError("HistoryRepository.PruneOldest", "prune failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, core.NewTransactionError("HistoryRepository.PruneOldest", "rows affected failed", err)
	}
	return int(n), nil
}

// DeleteForMonitor removes every history row for monitorID.
func (r *HistoryRepository) DeleteForMonitor(ctx context.Context, monitorID string) error {
	return r.engine.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM history WHERE monitor_id = ?`, monitorID)
		if err != nil {
			return core.NewTransactionError("HistoryRepository.DeleteForMonitor", "delete failed", err)
		}
		return nil
	})
}
