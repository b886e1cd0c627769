package redis

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinesync/internal/core/domain"
	"cinesync/pkg/logger"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisHistoryStore_TrimsToNewest(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewRedisHistoryStore(client, logger.NewNop())
	ctx := context.Background()

	for i := 1; i <= 60; i++ {
		ev := domain.NewChatEvent(domain.ChatEventChat, 9, 2, "bob", fmt.Sprintf("msg %d", i))
		require.NoError(t, store.Append(ctx, ev, domain.HistorySize))
	}

	raw, err := mr.List("chat:history:9")
	require.NoError(t, err)
	assert.Len(t, raw, domain.HistorySize)

	events, err := store.List(ctx, 9)
	require.NoError(t, err)
	require.Len(t, events, domain.HistorySize)
	assert.Equal(t, "msg 11", events[0].Content)
	assert.Equal(t, "msg 60", events[49].Content)
	assert.Equal(t, domain.ChatEventChat, events[0].Type)
}

func TestRedisHistoryStore_EmptyRoom(t *testing.T) {
	_, client := newTestClient(t)
	store := NewRedisHistoryStore(client, logger.NewNop())

	events, err := store.List(context.Background(), 404)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestRedisPresenceStore(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewRedisPresenceStore(client)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, 3, "7"))
	require.NoError(t, store.Add(ctx, 3, "8"))

	members, err := mr.Members("room:participants:3")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"7", "8"}, members)

	require.NoError(t, store.Remove(ctx, 3, "7"))
	got, err := store.Members(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"8"}, got)
}

func TestRedisSnapshotStore_MergeAndDelete(t *testing.T) {
	mr, client := newTestClient(t)
	store := NewRedisSnapshotStore(client)
	ctx := context.Background()
	zero, at := 0.0, 12.5

	require.NoError(t, store.Save(ctx, 5, domain.Snapshot{Status: domain.StreamStarted, Media: "https://cdn.example/movie.mp4", Time: &zero}))
	require.NoError(t, store.Save(ctx, 5, domain.Snapshot{Status: domain.StreamPaused, Time: &at}))

	assert.Equal(t, "PAUSED", mr.HGet("stream:5", "status"))
	assert.Equal(t, "12.5", mr.HGet("stream:5", "time"))
	assert.Equal(t, "https://cdn.example/movie.mp4", mr.HGet("stream:5", "media"))

	snap, ok, err := store.Get(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StreamPaused, snap.Status)
	assert.Equal(t, 12.5, *snap.Time)

	require.NoError(t, store.Delete(ctx, 5))
	_, ok, err = store.Get(ctx, 5)
	require.NoError(t, err)
	assert.False(t, ok)
}
