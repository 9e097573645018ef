package storage

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolConfig holds connection pool configuration.
type PoolConfig struct {
	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 25
	MaxOpenConns int

	// MaxIdleConns is the maximum number of connections in the idle pool.
	// Default: 10
	MaxIdleConns int

	// ConnMaxLifetime is the maximum amount of time a connection may be reused.
	// Default: 5 minutes
	ConnMaxLifetime time.Duration

	// ConnMaxIdleTime is the maximum amount of time a connection may be idle.
	// Default: 1 minute
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig returns the defaults used for PostgreSQL.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	}
}

// SQLitePoolConfig serializes writers; SQLite allows one writer at a time.
func SQLitePoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: 0,
		ConnMaxIdleTime: 0,
	}
}

// PoolOption configures connection pool settings.
type PoolOption interface {
	applyPool(*PoolConfig)
}

type poolOptionFunc func(*PoolConfig)

func (f poolOptionFunc) applyPool(c *PoolConfig) { f(c) }

// MaxOpenConns sets the maximum number of open connections.
func MaxOpenConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.MaxOpenConns = n
	})
}

// MaxIdleConns sets the maximum number of idle connections.
func MaxIdleConns(n int) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.MaxIdleConns = n
	})
}

// ConnMaxLifetime sets the maximum connection lifetime.
func ConnMaxLifetime(d time.Duration) PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.ConnMaxLifetime = d
	})
}

// ConfigurePool applies pool configuration on top of base.
func ConfigurePool(db *gorm.DB, base PoolConfig, opts ...PoolOption) error {
	config := base
	for _, opt := range opts {
		opt.applyPool(&config)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	return nil
}

// Open connects to driver ("sqlite" or "postgres") and configures the pool for it.
func Open(driver, dsn string, opts ...PoolOption) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	var (
		db   *gorm.DB
		err  error
		base PoolConfig
	)
	switch driver {
	case "sqlite", "":
		db, err = gorm.Open(sqlite.Open(sqliteDSN(dsn)), cfg)
		base = SQLitePoolConfig()
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		base = DefaultPoolConfig()
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", driver, err)
	}

	if err := ConfigurePool(db, base, opts...); err != nil {
		return nil, err
	}
	return db, nil
}

// sqliteDSN adds a busy timeout and WAL journaling unless the caller set them.
func sqliteDSN(dsn string) string {
	if dsn == "" {
		dsn = "ingestion.db"
	}
	if strings.Contains(dsn, "_busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000&_journal_mode=WAL"
}

// NewGormStorageWithPool creates a GORM storage with connection pooling configured.
func NewGormStorageWithPool(db *gorm.DB, opts ...PoolOption) (*GormStorage, error) {
	base := DefaultPoolConfig()
	if db.Dialector.Name() == "sqlite" {
		base = SQLitePoolConfig()
	}
	if err := ConfigurePool(db, base, opts...); err != nil {
		return nil, err
	}
	return NewGormStorage(db), nil
}
