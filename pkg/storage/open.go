package storage

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured database with default pool limits
// and returns a store over it. Supported drivers are "sqlite" and
// "postgres".
func Open(driver, dsn string) (*GormStore, error) {
	return OpenWithPool(driver, dsn, DefaultPoolConfig())
}

// OpenWithPool connects with explicit pool limits.
func OpenWithPool(driver, dsn string, pool PoolConfig) (*GormStore, error) {
	db, err := OpenDB(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.apply(db); err != nil {
		return nil, err
	}
	return NewGormStore(db), nil
}

// OpenDB connects without pool tuning or wrapping.
func OpenDB(driver, dsn string) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	switch driver {
	case "sqlite", "":
		return gorm.Open(sqlite.Open(dsn), cfg)
	case "postgres":
		return gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", driver)
	}
}
