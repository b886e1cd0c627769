package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cinesync/internal/core/ports"
	"cinesync/internal/infrastructure/distributed"
	"cinesync/internal/infrastructure/repositories/database"
	"cinesync/internal/infrastructure/repositories/memory"
	redisrepo "cinesync/internal/infrastructure/repositories/redis"
	"cinesync/pkg/config"
	pkgdistributed "cinesync/pkg/distributed"
)

// RepositoryFactory builds the storage, bus and lock adapters selected by
// configuration. Shared-state adapters fall back to memory when Redis is
// unreachable, which is only safe for single-instance deployments.
type RepositoryFactory struct {
	cfg         *config.Config
	instanceID  string
	logger      *zap.SugaredLogger
	redisClient *redis.Client
	rooms       ports.RoomRepository
	streams     ports.StreamRepository
	bus         ports.MessageBus
}

func NewRepositoryFactory(ctx context.Context, cfg *config.Config, instanceID string, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	f := &RepositoryFactory{cfg: cfg, instanceID: instanceID, logger: logger}

	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(ctx, redisrepo.ClientConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, logger)
		if err != nil {
			logger.Warnw("Failed to connect to Redis, falling back to memory stores", "error", err)
		} else {
			f.redisClient = client
		}
	}

	switch cfg.Database.Driver {
	case "postgres", "sqlite":
		db, err := database.Open(ctx, database.Config{
			Driver:          cfg.Database.Driver,
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, logger)
		if err != nil {
			f.Close()
			return nil, err
		}
		f.rooms = database.NewGormRoomRepository(db, cfg.Database.LockTimeout)
		f.streams = database.NewGormStreamRepository(db)
	default:
		logger.Info("Using memory room repository")
		f.rooms = memory.NewMemoryRoomRepository(cfg.Database.LockTimeout)
		f.streams = memory.NewMemoryStreamRepository()
	}

	bus, err := f.createBus(ctx)
	if err != nil {
		f.Close()
		return nil, err
	}
	f.bus = bus
	return f, nil
}

func (f *RepositoryFactory) createBus(ctx context.Context) (ports.MessageBus, error) {
	switch f.cfg.Bus.Driver {
	case "nats":
		return distributed.NewNATSBus(ctx, f.cfg.Bus.NATSURL, f.instanceID, f.logger)
	case "redis":
		if f.redisClient != nil {
			return distributed.NewRedisBus(f.redisClient, f.instanceID, f.logger), nil
		}
		f.logger.Warn("Redis bus requested but Redis is unavailable, using in-process bus")
	}
	return distributed.NewMemoryBus(), nil
}

func (f *RepositoryFactory) RoomRepository() ports.RoomRepository { return f.rooms }

func (f *RepositoryFactory) StreamRepository() ports.StreamRepository { return f.streams }

func (f *RepositoryFactory) MessageBus() ports.MessageBus { return f.bus }

func (f *RepositoryFactory) PresenceStore() ports.PresenceStore {
	if f.redisClient != nil {
		return redisrepo.NewRedisPresenceStore(f.redisClient)
	}
	return memory.NewMemoryPresenceStore()
}

func (f *RepositoryFactory) HistoryStore() ports.HistoryStore {
	if f.redisClient != nil {
		return redisrepo.NewRedisHistoryStore(f.redisClient, f.logger)
	}
	return memory.NewMemoryHistoryStore()
}

func (f *RepositoryFactory) SnapshotStore() ports.SnapshotStore {
	if f.redisClient != nil {
		return redisrepo.NewRedisSnapshotStore(f.redisClient)
	}
	return memory.NewMemorySnapshotStore()
}

// StreamLocker serializes stream transitions per room across instances.
func (f *RepositoryFactory) StreamLocker() ports.Locker {
	wait := f.cfg.Database.LockTimeout
	if f.redisClient != nil {
		return pkgdistributed.NewRedisLocker(f.redisClient, "cinesync:lock:", 2*wait, wait)
	}
	return pkgdistributed.NewKeyedMutex(wait)
}

// Close releases the bus, the database and the Redis client.
func (f *RepositoryFactory) Close() error {
	var errs []error
	if f.bus != nil {
		errs = append(errs, f.bus.Close())
	}
	if f.rooms != nil {
		errs = append(errs, f.rooms.Close())
	}
	if f.redisClient != nil {
		errs = append(errs, f.redisClient.Close())
	}
	return errors.Join(errs...)
}

// HealthCheck pings the database and Redis.
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if err := f.rooms.Ping(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if f.redisClient != nil {
		if err := f.redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}
