package redis

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"cinesync/internal/core/domain"
)

type RedisPresenceStore struct {
	client redis.UniversalClient
}

func NewRedisPresenceStore(client redis.UniversalClient) *RedisPresenceStore {
	return &RedisPresenceStore{client: client}
}

func (s *RedisPresenceStore) Add(ctx context.Context, roomID domain.RoomID, userID string) error {
	if err := s.client.SAdd(ctx, participantsKey(roomID), userID).Err(); err != nil {
		return fmt.Errorf("failed to add presence: %w", err)
	}
	return nil
}

func (s *RedisPresenceStore) Remove(ctx context.Context, roomID domain.RoomID, userID string) error {
	if err := s.client.SRem(ctx, participantsKey(roomID), userID).Err(); err != nil {
		return fmt.Errorf("failed to remove presence: %w", err)
	}
	return nil
}

func (s *RedisPresenceStore) Members(ctx context.Context, roomID domain.RoomID) ([]string, error) {
	members, err := s.client.SMembers(ctx, participantsKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read presence: %w", err)
	}
	sort.Strings(members)
	return members, nil
}
