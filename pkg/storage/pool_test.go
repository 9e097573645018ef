package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig()

	assert.Equal(t, 25, cfg.MaxOpenConns)
	assert.Equal(t, 10, cfg.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, 1*time.Minute, cfg.ConnMaxIdleTime)
}

func TestSQLitePoolConfig(t *testing.T) {
	cfg := SQLitePoolConfig()

	assert.Equal(t, 1, cfg.MaxOpenConns)
	assert.Equal(t, 1, cfg.MaxIdleConns)
}

func TestPoolOptions(t *testing.T) {
	cfg := PoolConfig{}

	MaxOpenConns(50).applyPool(&cfg)
	assert.Equal(t, 50, cfg.MaxOpenConns)

	MaxIdleConns(20).applyPool(&cfg)
	assert.Equal(t, 20, cfg.MaxIdleConns)

	ConnMaxLifetime(10 * time.Minute).applyPool(&cfg)
	assert.Equal(t, 10*time.Minute, cfg.ConnMaxLifetime)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_busy_timeout=5000&_journal_mode=WAL", sqliteDSN("a.db"))
	assert.Equal(t, "a.db?cache=shared&_busy_timeout=5000&_journal_mode=WAL", sqliteDSN("a.db?cache=shared"))
	assert.Equal(t, "a.db?_busy_timeout=100", sqliteDSN("a.db?_busy_timeout=100"))
}

func TestOpen_SQLite(t *testing.T) {
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	assert.Equal(t, "sqlite", db.Dialector.Name())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("oracle", "x")
	assert.Error(t, err)
}

func TestNewGormStorageWithPool(t *testing.T) {
	db := openTestDB(t)

	s, err := NewGormStorageWithPool(db, MaxOpenConns(3))
	require.NoError(t, err)
	assert.Same(t, db, s.DB())
}
