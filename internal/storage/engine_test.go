package storage

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nick2bad4u/uptime-watcher/internal/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "", testLogger())
	var appErr *core.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, core.CodeConfiguration, appErr.Code)
}

func TestOpenRejectsPathTraversal(t *testing.T) {
	_, err := Open(context.Background(), "../escape.db", testLogger())
	require.Error(t, err)
}

func TestOpenRejectsForbiddenPrefix(t *testing.T) {
	_, err := Open(context.Background(), "/etc/uptimewatcher.db", testLogger())
	require.Error(t, err)
}

func TestOpenCreatesDataDirectoryAndMigratesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "uptimewatcher.db")
	engine, err := Open(context.Background(), path, testLogger())
	require.NoError(t, err)
	defer engine.Close()

	row := engine.DB().QueryRow("SELECT count(*) FROM sites")
	var count int
	require.NoError(t, row.Scan(&count))
	assert.Zero(t, count)
}

func TestTransactionCommitsOnSuccess(t *testing.T) {
	engine := newTestEngine(t)
	err := engine.Transaction(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO sites (identifier, name, monitoring) VALUES (?, ?, ?)", "site-1", "Example", true)
		return err
	})
	require.NoError(t, err)

	var count int
	require.NoError(t, engine.DB().QueryRow("SELECT count(*) FROM sites WHERE identifier = ?", "site-1").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	engine := newTestEngine(t)
	sentinel := errors.New("boom")
	err := engine.Transaction(context.Background(), func(tx *sql.Tx) error {
		_, execErr := tx.Exec("INSERT INTO sites (identifier, name, monitoring) VALUES (?, ?, ?)", "site-1", "Example", true)
		if execErr != nil {
			return execErr
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	var count int
	require.NoError(t, engine.DB().QueryRow("SELECT count(*) FROM sites").Scan(&count))
	assert.Zero(t, count)
}

func TestTransactionRollsBackAndRepanicsOnPanic(t *testing.T) {
	engine := newTestEngine(t)
	assert.Panics(t, func() {
		_ = engine.Transaction(context.Background(), func(tx *sql.Tx) error {
			panic("unexpected failure")
		})
	})

	var count int
	require.NoError(t, engine.DB().QueryRow("SELECT count(*) FROM sites").Scan(&count))
	assert.Zero(t, count)
}

func TestVacuumIntoProducesReadableBackup(t *testing.T) {
	engine := newTestEngine(t)
	_, err := engine.DB().Exec("INSERT INTO sites (identifier, name, monitoring) VALUES (?, ?, ?)", "site-1", "Example", true)
	require.NoError(t, err)

	backupPath := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, engine.VacuumInto(context.Background(), backupPath))

	backup, err := Open(context.Background(), backupPath, testLogger())
	require.NoError(t, err)
	defer backup.Close()

	var count int
	require.NoError(t, backup.DB().QueryRow("SELECT count(*) FROM sites").Scan(&count))
	assert.Equal(t, 1, count)
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "uptimewatcher.db")
	engine, err := Open(context.Background(), path, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}
