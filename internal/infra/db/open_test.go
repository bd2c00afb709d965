package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConnectionConfig(t *testing.T) {
	cfg := DefaultConnectionConfig()

	assert.Equal(t, 5, cfg.MaxOpenConns)
	assert.Equal(t, 2, cfg.MaxIdleConns)
	assert.Equal(t, time.Hour, cfg.ConnMaxLifetime)
	assert.Equal(t, 10*time.Minute, cfg.ConnMaxIdleTime)
}

func TestConnectionConfigFromEnv(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "12")
	t.Setenv("DB_MAX_IDLE_CONNS", "-1")
	t.Setenv("DB_CONN_MAX_LIFETIME", "30m")
	t.Setenv("DB_CONN_MAX_IDLE_TIME", "not-a-duration")

	cfg := ConnectionConfigFromEnv()

	assert.Equal(t, 12, cfg.MaxOpenConns)
	assert.Equal(t, 2, cfg.MaxIdleConns, "negative value keeps default")
	assert.Equal(t, 30*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, 10*time.Minute, cfg.ConnMaxIdleTime, "invalid value keeps default")
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, ":memory:", SQLiteDSN(":memory:"))
	assert.Equal(t,
		"file:/var/lib/collector/history.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)",
		SQLiteDSN("/var/lib/collector/history.db"))
}

func TestOpenSQLite_AndMigrate(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, MigrateUp(ctx, db, SQLite))
	require.NoError(t, MigrateUp(ctx, db, SQLite), "migration must be idempotent")

	var n int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name LIKE 'idx_sent_articles_%'`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestOpen_EmptyDSN(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyDSN)

	_, err = OpenPostgres(context.Background(), "", DefaultConnectionConfig())
	assert.ErrorIs(t, err, ErrEmptyDSN)
}
