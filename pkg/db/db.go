package db

import (
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/telcobill/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Module provides the shared *gorm.DB connection.
var Module = fx.Module("db",
	fx.Provide(Open),
)

// Open connects to the configured database. A postgres:// DSN selects the
// postgres driver; anything else is treated as a sqlite path (dev/test).
func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector := dialectorFor(cfg.DatabaseDSN)

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	log.Named("db").Info("database connected", zap.String("dialect", conn.Dialector.Name()))
	return conn, nil
}

func dialectorFor(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return postgres.Open(dsn)
	}
	if strings.TrimSpace(dsn) == "" {
		dsn = "file::memory:?cache=shared"
	}
	return sqlite.Open(dsn)
}

// RowLock returns the row-lock suffix for SELECT statements. SQLite has no
// FOR UPDATE syntax; its single-writer transactions already serialize.
func RowLock(conn *gorm.DB) string {
	if conn != nil && conn.Dialector.Name() == "postgres" {
		return " FOR UPDATE"
	}
	return ""
}

// RowLockSkipLocked returns the work-queue lock suffix used by batch fetches.
func RowLockSkipLocked(conn *gorm.DB) string {
	if conn != nil && conn.Dialector.Name() == "postgres" {
		return " FOR UPDATE SKIP LOCKED"
	}
	return ""
}

// IsUniqueViolation reports whether err is a unique-index violation from
// either supported dialect. Callers racing on an insert map it to their own
// duplicate sentinel instead of surfacing the driver error.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
