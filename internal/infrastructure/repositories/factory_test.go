package repositories

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinesync/internal/core/domain"
	"cinesync/internal/infrastructure/distributed"
	"cinesync/internal/infrastructure/repositories/database"
	"cinesync/internal/infrastructure/repositories/memory"
	redisrepo "cinesync/internal/infrastructure/repositories/redis"
	"cinesync/pkg/config"
	pkgdistributed "cinesync/pkg/distributed"
	"cinesync/pkg/logger"
)

func TestRepositoryFactory_MemoryDefaults(t *testing.T) {
	cfg := config.DefaultConfig()
	f, err := NewRepositoryFactory(context.Background(), cfg, "test", logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	assert.IsType(t, &memory.MemoryRoomRepository{}, f.RoomRepository())
	assert.IsType(t, &distributed.MemoryBus{}, f.MessageBus())
	assert.IsType(t, &pkgdistributed.KeyedMutex{}, f.StreamLocker())
	assert.NotNil(t, f.PresenceStore())
	assert.NotNil(t, f.HistoryStore())
	assert.NotNil(t, f.SnapshotStore())
	assert.NoError(t, f.HealthCheck(context.Background()))
}

func TestRepositoryFactory_RedisAndSQLite(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Address = mr.Addr()
	cfg.Bus.Driver = "redis"
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"

	f, err := NewRepositoryFactory(context.Background(), cfg, "test", logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	assert.IsType(t, &database.GormRoomRepository{}, f.RoomRepository())
	assert.IsType(t, &distributed.RedisBus{}, f.MessageBus())
	assert.IsType(t, &pkgdistributed.RedisLocker{}, f.StreamLocker())
	assert.IsType(t, &redisrepo.RedisPresenceStore{}, f.PresenceStore())

	ctx := context.Background()
	require.NoError(t, f.SnapshotStore().Save(ctx, 7, domain.StoppedSnapshot()))
	assert.True(t, mr.Exists("stream:7"))

	require.NoError(t, f.HealthCheck(ctx))
	mr.Close()
	assert.Error(t, f.HealthCheck(ctx))
}

func TestRepositoryFactory_FallsBackWhenRedisUnreachable(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Redis.Enabled = true
	cfg.Redis.Address = "127.0.0.1:1"
	cfg.Bus.Driver = "redis"

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	f, err := NewRepositoryFactory(ctx, cfg, "test", logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	assert.IsType(t, &distributed.MemoryBus{}, f.MessageBus())
	assert.IsType(t, &pkgdistributed.KeyedMutex{}, f.StreamLocker())
}
