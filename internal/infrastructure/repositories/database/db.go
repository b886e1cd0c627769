package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"cinesync/internal/core/domain"
	"cinesync/pkg/retry"
)

type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to postgres or sqlite and migrates the schema.
func Open(ctx context.Context, cfg Config, logger *zap.SugaredLogger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := retry.RetryWithResult(ctx, retry.DefaultConfig(), func() (*gorm.DB, error) {
		return gorm.Open(dialector, &gorm.Config{
			TranslateError: true,
			Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.Driver == "sqlite" {
		// A single connection serializes writers, which is sqlite's row lock.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.WithContext(ctx).AutoMigrate(&RoomModel{}, &ParticipantModel{}, &StreamModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	if logger != nil {
		logger.Infow("Connected to database", "driver", cfg.Driver)
	}
	return db, nil
}

// Postgres SQLSTATEs for lock_timeout expiry and detected deadlock.
const (
	sqlStateLockNotAvailable = "55P03"
	sqlStateDeadlock         = "40P01"
)

func isLockFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateLockNotAvailable || pgErr.Code == sqlStateDeadlock
	}
	return false
}

// mapError turns driver errors into domain sentinels where one applies.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%v: %w", err, domain.ErrRoomNotFound)
	case isLockFailure(err):
		return fmt.Errorf("%v: %w", err, domain.ErrLockTimeout)
	}
	return err
}
