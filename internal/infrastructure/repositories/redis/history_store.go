package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"cinesync/internal/core/domain"
)

type RedisHistoryStore struct {
	client redis.UniversalClient
	logger *zap.SugaredLogger
}

func NewRedisHistoryStore(client redis.UniversalClient, logger *zap.SugaredLogger) *RedisHistoryStore {
	return &RedisHistoryStore{client: client, logger: logger}
}

// Append pushes the event and trims the list to the newest limit entries in
// one round trip.
func (s *RedisHistoryStore) Append(ctx context.Context, event domain.ChatEvent, limit int) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal chat event: %w", err)
	}

	key := historyKey(event.RoomID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if limit > 0 {
		pipe.LTrim(ctx, key, int64(-limit), -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append chat history: %w", err)
	}
	return nil
}

func (s *RedisHistoryStore) List(ctx context.Context, roomID domain.RoomID) ([]domain.ChatEvent, error) {
	raw, err := s.client.LRange(ctx, historyKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}

	events := make([]domain.ChatEvent, 0, len(raw))
	for _, item := range raw {
		var ev domain.ChatEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			s.logger.Warnw("Skipping unreadable history entry", "room_id", roomID, "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
