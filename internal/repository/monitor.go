package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
	"github.com/nick2bad4u/uptime-watcher/internal/storage"
)

// MonitorRepository implements core.MonitorRepository.
type MonitorRepository struct {
	engine *storage.Engine
	logger *slog.Logger
}

// NewMonitorRepository constructs a MonitorRepository.
func NewMonitorRepository(engine *storage.Engine, logger *slog.Logger) *MonitorRepository {
	return &MonitorRepository{engine: engine, logger: logger}
}

var _ core.MonitorRepository = (*MonitorRepository)(nil)

const monitorColumns = `id, site_identifier, type, monitoring, status, check_interval, timeout, retry_attempts, response_time, last_checked, active_operations, payload`

func (r *MonitorRepository) scanMonitor(scan func(dest ...any) error) (core.Monitor, error) {
	var (
		m                 core.Monitor
		monitoring        int
		checkIntervalNS   int64
		timeoutNS         int64
		responseTime      *int64
		lastChecked       *int64
		activeOperations  string
		payload           string
	)
	if err := scan(&m.ID, &m.SiteIdentifier, &m.Type, &monitoring, &m.Status, &checkIntervalNS, &timeoutNS,
		&m.RetryAttempts, &responseTime, &lastChecked, &activeOperations, &payload); err != nil {
		return core.Monitor{}, err
	}

	m.Monitoring = monitoring != 0
	m.CheckInterval = time.Duration(checkIntervalNS)
	m.Timeout = time.Duration(timeoutNS)
	m.ActiveOperations = decodeActiveOperations(r.logger, m.ID, activeOperations)
	m.Config = decodeConfig(r.logger, m.ID, payload)

	if rt := safeInteger(responseTime); rt > 0 || responseTime != nil {
		d := time.Duration(rt)
		m.ResponseTime = &d
	}
	if lc := safeInteger(lastChecked); lastChecked != nil {
		t := time.UnixMilli(lc)
		m.LastChecked = &t
	}
	return m, nil
}

// FindAll returns every monitor belonging to siteIdentifier.
func (r *MonitorRepository) FindAll(ctx context.Context, siteIdentifier string) ([]core.Monitor, error) {
	rows, err := r.engine.DB().QueryContext(ctx,
		`SELECT `+monitorColumns+` FROM monitors WHERE site_identifier = ? ORDER BY id`, siteIdentifier)
	if err != nil {
		return nil, core.NewTransactionError("MonitorRepository.FindAll", "query failed", err)
	}
	defer rows.Close()

	var monitors []core.Monitor
	for rows.Next() {
		m, err := r.scanMonitor(rows.Scan)
		if err != nil {
			return nil, core.NewTransactionError("MonitorRepository.FindAll", "row scan failed", err)
		}
		monitors = append(monitors, m)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewTransactionError("MonitorRepository.FindAll", "row iteration failed", err)
	}
	return monitors, nil
}

// FindByID returns a single monitor, or nil if absent.
func (r *MonitorRepository) FindByID(ctx context.Context, id string) (*core.Monitor, error) {
	row := r.engine.DB().QueryRowContext(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE id = ?`, id)
	m, err := r.scanMonitor(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, core.NewTransactionError("MonitorRepository.FindByID", "query failed", err)
	}
	return &m, nil
}

// Upsert inserts or updates a monitor's full row.
func (r *MonitorRepository) Upsert(ctx context.Context, m core.Monitor) (core.Monitor, error) {
	var out core.Monitor
	err := r.engine.Transaction(ctx, func(tx *sql.Tx) error {
		var txErr error
		out, txErr = r.UpsertTx(ctx, tx, m)
		return txErr
	})
	return out, err
}

// UpsertTx is the transaction-scoped variant used by the site mutation
// pipeline.
func (r *MonitorRepository) UpsertTx(ctx context.Context, tx *sql.Tx, m core.Monitor) (core.Monitor, error) {
	if err := core.Validator().Struct(m); err != nil {
		return core.Monitor{}, core.NewValidationError("MonitorRepository.Upsert", "monitor failed validation", err)
	}
	activeOps, err := encodeActiveOperations(m.ActiveOperations)
	if err != nil {
		return core.Monitor{}, core.NewValidationError("MonitorRepository.Upsert", "failed to encode active operations", err)
	}
	payload, err := encodeConfig(m.Config)
	if err != nil {
		return core.Monitor{}, core.NewValidationError("MonitorRepository.Upsert", "failed to encode config payload", err)
	}

	var responseTimeNS *int64
	if m.ResponseTime != nil {
		v := int64(*m.ResponseTime)
		responseTimeNS = &v
	}
	var lastCheckedMS *int64
	if m.LastChecked != nil {
		v := m.LastChecked.UnixMilli()
		lastCheckedMS = &v
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO monitors (id, site_identifier, type, monitoring, status, check_interval, timeout, retry_attempts, response_time, last_checked, active_operations, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			site_identifier = excluded.site_identifier,
			type = excluded.type,
			monitoring = excluded.monitoring,
			status = excluded.status,
			check_interval = excluded.check_interval,
			timeout = excluded.timeout,
			retry_attempts = excluded.retry_attempts,
			response_time = excluded.response_time,
			last_checked = excluded.last_checked,
			active_operations = excluded.active_operations,
			payload = excluded.payload
	`, m.ID, m.SiteIdentifier, string(m.Type), boolToInt(m.Monitoring), string(m.Status),
		int64(m.CheckInterval), int64(m.Timeout), m.RetryAttempts, responseTimeNS, lastCheckedMS, activeOps, payload)
	if err != nil {
		return core.Monitor{}, core.NewTransactionError("MonitorRepository.Upsert", "upsert failed", err)
	}
	return m, nil
}

// UpdateResult updates the fields a completed check changes: status,
// response time, last-checked timestamp, and active operations. Unlike
// Upsert it never touches type/config/site linkage.
func (r *MonitorRepository) UpdateResult(ctx context.Context, m core.Monitor) error {
	return r.engine.Transaction(ctx, func(tx *sql.Tx) error {
		return r.UpdateResultTx(ctx, tx, m)
	})
}

// UpdateResultTx is the transaction-scoped variant, used by the monitor
// checker within the same transaction that writes the history row.
func (r *MonitorRepository) UpdateResultTx(ctx context.Context, tx *sql.Tx, m core.Monitor) error {
	activeOps, err := encodeActiveOperations(m.ActiveOperations)
	if err != nil {
		return core.NewValidationError("MonitorRepository.UpdateResult", "failed to encode active operations", err)
	}

	var responseTimeNS *int64
	if m.ResponseTime != nil {
		v := int64(*m.ResponseTime)
		responseTimeNS = &v
	}
	var lastCheckedMS *int64
	if m.LastChecked != nil {
		v := m.LastChecked.UnixMilli()
		lastCheckedMS = &v
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE monitors SET status = ?, response_time = ?, last_checked = ?, active_operations = ?
		WHERE id = ?
	`, string(m.Status), responseTimeNS, lastCheckedMS, activeOps, m.ID)
	if err != nil {
		return core.NewTransactionError("MonitorRepository.UpdateResult", "update failed", err)
	}
	return nil
}

// Delete removes a monitor (cascading to history) and reports whether a
// row was actually removed.
func (r *MonitorRepository) Delete(ctx context.Context, id string) (bool, error) {
	var removed bool
	err := r.engine.Transaction(ctx, func(tx *sql.Tx) error {
		var txErr error
		removed, txErr = r.DeleteTx(ctx, tx, id)
		return txErr
	})
	return removed, err
}

// DeleteTx is the transaction-scoped variant.
func (r *MonitorRepository) DeleteTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM monitors WHERE id = ?`, id)
	if err != nil {
		return false, core.NewTransactionError("MonitorRepository.Delete", "delete failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, core.NewTransactionError("MonitorRepository.Delete", "rows affected failed", err)
	}
	return n > 0, nil
}

// CountForSite reports how many monitors belong to siteIdentifier, used by
// the mutation pipeline's "cannot remove last monitor" invariant.
func (r *MonitorRepository) CountForSite(ctx context.Context, siteIdentifier string) (int, error) {
	return r.CountForSiteTx(ctx, r.engine.DB(), siteIdentifier)
}

// CountForSiteTx is the transaction-scoped variant.
func (r *MonitorRepository) CountForSiteTx(ctx context.Context, q querier, siteIdentifier string) (int, error) {
	var n int
	row := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM monitors WHERE site_identifier = ?`, siteIdentifier)
	if err := row.Scan(&n); err != nil {
		return 0, core.NewTransactionError("MonitorRepository.CountForSite", "count failed", err)
	}
	return n, nil
}
