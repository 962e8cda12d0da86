// Package db owns database connections and schema migration.
package db

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options holds connection settings for either backend.
type Options struct {
	Driver   string // "sqlite" or "mysql"
	Path     string // sqlite file path
	Host     string
	Port     int
	User     string
	Password string
	Name     string // mysql database name
}

// DSN builds a MySQL DSN from the options.
func DSN(o Options) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4",
		o.User, o.Password, o.Host, o.Port, o.Name)
}

// Connect opens a GORM connection to the configured backend. TranslateError
// is enabled so duplicate-key violations surface as gorm.ErrDuplicatedKey on
// both drivers.
func Connect(o Options) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	switch o.Driver {
	case "sqlite", "":
		db, err := gorm.Open(sqlite.Open(o.Path), cfg)
		if err != nil {
			return nil, fmt.Errorf("db: open sqlite %s: %w", o.Path, err)
		}
		// A single writer avoids SQLITE_BUSY under concurrent ingest.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("db: sqlite pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	case "mysql":
		db, err := gorm.Open(mysql.Open(DSN(o)), cfg)
		if err != nil {
			return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", o.Host, o.Port, o.Name, err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("db: mysql pool: %w", err)
		}
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetConnMaxLifetime(time.Hour)
		return db, nil
	default:
		return nil, fmt.Errorf("db: unknown driver %q", o.Driver)
	}
}
