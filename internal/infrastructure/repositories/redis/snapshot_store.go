package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"cinesync/internal/core/domain"
)

// RedisSnapshotStore keeps the live stream state in a hash with string
// fields status, media and time.
type RedisSnapshotStore struct {
	client redis.UniversalClient
}

func NewRedisSnapshotStore(client redis.UniversalClient) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client}
}

func (s *RedisSnapshotStore) Save(ctx context.Context, roomID domain.RoomID, snap domain.Snapshot) error {
	fields := map[string]interface{}{}
	if snap.Status != "" {
		fields["status"] = string(snap.Status)
	}
	if snap.Media != "" {
		fields["media"] = snap.Media
	}
	if snap.Time != nil {
		fields["time"] = strconv.FormatFloat(*snap.Time, 'f', -1, 64)
	}
	if len(fields) == 0 {
		return nil
	}
	if err := s.client.HSet(ctx, streamKey(roomID), fields).Err(); err != nil {
		return fmt.Errorf("failed to save stream snapshot: %w", err)
	}
	return nil
}

func (s *RedisSnapshotStore) Get(ctx context.Context, roomID domain.RoomID) (domain.Snapshot, bool, error) {
	fields, err := s.client.HGetAll(ctx, streamKey(roomID)).Result()
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("failed to read stream snapshot: %w", err)
	}
	if len(fields) == 0 {
		return domain.Snapshot{}, false, nil
	}

	snap := domain.Snapshot{
		Status: domain.StreamStatus(fields["status"]),
		Media:  fields["media"],
	}
	if raw, ok := fields["time"]; ok && raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.Snapshot{}, false, fmt.Errorf("stream snapshot time %q: %w", raw, err)
		}
		snap.Time = &t
	}
	return snap, true, nil
}

func (s *RedisSnapshotStore) Delete(ctx context.Context, roomID domain.RoomID) error {
	if err := s.client.Del(ctx, streamKey(roomID)).Err(); err != nil {
		return fmt.Errorf("failed to delete stream snapshot: %w", err)
	}
	return nil
}
