package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
	"github.com/nick2bad4u/uptime-watcher/internal/storage"
)

// SiteRepository implements core.SiteRepository against the SQL storage
// engine. Sites are read without their monitors; monitor rows are queried
// only through MonitorRepository.
type SiteRepository struct {
	engine *storage.Engine
	logger *slog.Logger
}

// NewSiteRepository constructs a SiteRepository.
func NewSiteRepository(engine *storage.Engine, logger *slog.Logger) *SiteRepository {
	return &SiteRepository{engine: engine, logger: logger}
}

var _ core.SiteRepository = (*SiteRepository)(nil)

// FindAll returns every site without its monitors populated; callers that
// need monitors should join with MonitorRepository.FindAll per site, or use
// the orchestrator's cache-backed aggregate view.
func (r *SiteRepository) FindAll(ctx context.Context) ([]core.Site, error) {
	return r.findAll(ctx, r.engine.DB())
}

func (r *SiteRepository) findAll(ctx context.Context, q querier) ([]core.Site, error) {
	rows, err := q.QueryContext(ctx, `SELECT identifier, name, monitoring FROM sites ORDER BY identifier`)
	if err != nil {
		return nil, core.NewTransactionError("SiteRepository.FindAll", "query failed", err)
	}
	defer rows.Close()

	var sites []core.Site
	for rows.Next() {
		var s core.Site
		var monitoring int
		if err := rows.Scan(&s.Identifier, &s.Name, &monitoring); err != nil {
			return nil, core.NewTransactionError("SiteRepository.FindAll", "row scan failed", err)
		}
		s.Monitoring = monitoring != 0
		sites = append(sites, s)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewTransactionError("SiteRepository.FindAll", "row iteration failed", err)
	}
	return sites, nil
}

// FindByIdentifier returns a single site, or nil if absent.
func (r *SiteRepository) FindByIdentifier(ctx context.Context, identifier string) (*core.Site, error) {
	return r.findByIdentifier(ctx, r.engine.DB(), identifier)
}

// FindByIdentifierTx is the transaction-scoped variant used by the site
// mutation pipeline's writer service.
func (r *SiteRepository) FindByIdentifierTx(ctx context.Context, tx *sql.Tx, identifier string) (*core.Site, error) {
	return r.findByIdentifier(ctx, tx, identifier)
}

func (r *SiteRepository) findByIdentifier(ctx context.Context, q querier, identifier string) (*core.Site, error) {
	if !core.IsSafeIdentifier(identifier) {
		return nil, core.NewValidationError("SiteRepository.FindByIdentifier", "identifier must be non-empty and control-character free", nil)
	}

	var s core.Site
	var monitoring int
	row := q.QueryRowContext(ctx, `SELECT identifier, name, monitoring FROM sites WHERE identifier = ?`, identifier)
	if err := row.Scan(&s.Identifier, &s.Name, &monitoring); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, core.NewTransactionError("SiteRepository.FindByIdentifier", "query failed", err)
	}
	s.Monitoring = monitoring != 0
	return &s, nil
}

// Upsert inserts or updates a site's name/monitoring fields.
func (r *SiteRepository) Upsert(ctx context.Context, site core.Site) (core.Site, error) {
	var out core.Site
	err := r.engine.Transaction(ctx, func(tx *sql.Tx) error {
		var txErr error
		out, txErr = r.UpsertTx(ctx, tx, site)
		return txErr
	})
	return out, err
}

// UpsertTx is the transaction-scoped variant.
func (r *SiteRepository) UpsertTx(ctx context.Context, tx *sql.Tx, site core.Site) (core.Site, error) {
	if !core.IsSafeIdentifier(site.Identifier) {
		return core.Site{}, core.NewValidationError("SiteRepository.Upsert", "identifier must be non-empty and control-character free", nil)
	}
	if err := core.Validator().Struct(site); err != nil {
		return core.Site{}, core.NewValidationError("SiteRepository.Upsert", "site failed validation", err)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO sites (identifier, name, monitoring) VALUES (?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET name = excluded.name, monitoring = excluded.monitoring
	`, site.Identifier, site.Name, boolToInt(site.Monitoring))
	if err != nil {
		return core.Site{}, core.NewTransactionError("SiteRepository.Upsert", "upsert failed", err)
	}
	return site, nil
}

// Delete removes a site (cascading to monitors and history via foreign
// keys) and reports whether a row was actually removed.
func (r *SiteRepository) Delete(ctx context.Context, identifier string) (bool, error) {
	var removed bool
	err := r.engine.Transaction(ctx, func(tx *sql.Tx) error {
		var txErr error
		removed, txErr = r.DeleteTx(ctx, tx, identifier)
		return txErr
	})
	return removed, err
}

// DeleteTx is the transaction-scoped variant.
func (r *SiteRepository) DeleteTx(ctx context.Context, tx *sql.Tx, identifier string) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM sites WHERE identifier = ?`, identifier)
	if err != nil {
		return false, core.NewTransactionError("SiteRepository.Delete", "delete failed", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, core.NewTransactionError("SiteRepository.Delete", "rows affected failed", err)
	}
	return n > 0, nil
}

// DeleteAll removes every site, cascading to monitors and history.
func (r *SiteRepository) DeleteAll(ctx context.Context) error {
	return r.engine.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM sites`)
		if err != nil {
			return core.NewTransactionError("SiteRepository.DeleteAll", "delete failed", err)
		}
		return nil
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
