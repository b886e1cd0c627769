package distributed

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus carries room events over Redis pub/sub. Delivery is at-most-once:
// messages published while a subscriber is disconnected are lost.
type RedisBus struct {
	client     redis.UniversalClient
	instanceID string
	logger     *zap.SugaredLogger
}

func NewRedisBus(client redis.UniversalClient, instanceID string, logger *zap.SugaredLogger) *RedisBus {
	return &RedisBus{
		client:     client,
		instanceID: instanceID,
		logger:     logger,
	}
}

func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe pattern-subscribes and invokes handler for every message until
// ctx is done. The handler runs on the receive goroutine.
func (b *RedisBus) Subscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) error {
	pubsub := b.client.PSubscribe(ctx, pattern)
	defer pubsub.Close()

	// Wait for the subscription confirmation so callers know it is live.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", pattern, err)
	}
	b.logger.Infow("Subscribed to bus", "pattern", pattern, "instance_id", b.instanceID)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription to %s closed", pattern)
			}
			handler(msg.Channel, []byte(msg.Payload))
		}
	}
}

// Close is a no-op; the client is owned by the repository factory.
func (b *RedisBus) Close() error {
	return nil
}
