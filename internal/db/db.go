package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/EmpoweredVote/geofence-backend/internal/logging"
)

// Schema holds every table of this service on Postgres.
const Schema = "geofence"

var DB *gorm.DB

// Options selects the database driver.
type Options struct {
	Driver   string // "postgres" or "sqlite"
	DSN      string
	LogLevel logger.LogLevel
}

// Connect opens the database and stores it in DB. It exits the process when
// the database cannot be reached.
func Connect(opts Options) {
	conn, err := Open(opts)
	if err != nil {
		logging.Logger.Fatalf("Failed to connect to database: %v", err)
	}
	DB = conn
	logging.Logger.Infof("Connected to %s database", opts.Driver)
}

// Open returns a configured gorm handle without touching DB.
func Open(opts Options) (*gorm.DB, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("database DSN is empty")
	}
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Warn
	}

	// Surface slow queries through the service logger.
	lg := logger.New(
		logging.Logger,
		logger.Config{
			SlowThreshold:             100 * time.Millisecond,
			LogLevel:                  opts.LogLevel,
			IgnoreRecordNotFoundError: true,
		},
	)
	cfg := &gorm.Config{
		Logger:         lg,
		TranslateError: true,
	}

	switch opts.Driver {
	case "", "postgres":
		cfg.NamingStrategy = schema.NamingStrategy{TablePrefix: Schema + "."}
		conn, err := gorm.Open(postgres.Open(opts.DSN), cfg)
		if err != nil {
			return nil, err
		}
		if err := EnsureSchema(conn, Schema); err != nil {
			return nil, fmt.Errorf("ensure schema %s: %w", Schema, err)
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(20)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		return conn, nil
	case "sqlite":
		conn, err := gorm.Open(sqlite.Open(opts.DSN), cfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql.DB: %w", err)
		}
		// An in-memory database only lives as long as its one connection.
		sqlDB.SetMaxOpenConns(1)
		return conn, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", opts.Driver)
	}
}

// ParseLogLevel maps a LOG_LEVEL value onto gorm's levels.
func ParseLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug", "trace":
		return logger.Info
	case "error", "fatal", "panic":
		return logger.Error
	default:
		return logger.Warn
	}
}

// OpenMemory returns a private in-memory sqlite database with query logging
// silenced.
func OpenMemory() (*gorm.DB, error) {
	return Open(Options{Driver: "sqlite", DSN: ":memory:", LogLevel: logger.Silent})
}
