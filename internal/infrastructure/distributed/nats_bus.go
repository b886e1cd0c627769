package distributed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"cinesync/pkg/retry"
)

// NATSBus carries room events over core NATS subjects. Room channels
// ("chat.room.42") are already valid subjects; a trailing "*" in a pattern
// maps onto the NATS single-token wildcard.
type NATSBus struct {
	nc     *nats.Conn
	logger *zap.SugaredLogger
}

func NewNATSBus(ctx context.Context, url, instanceID string, logger *zap.SugaredLogger) (*NATSBus, error) {
	cfg := retry.DefaultConfig()
	nc, err := retry.RetryWithResult(ctx, cfg, func() (*nats.Conn, error) {
		return nats.Connect(url,
			nats.Name("cinesync-"+instanceID),
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					logger.Warnw("NATS disconnected", "error", err)
				}
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Infow("NATS reconnected", "url", nc.ConnectedUrl())
			}),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSBus{nc: nc, logger: logger}, nil
}

func (b *NATSBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.nc.Publish(channel, payload); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

func (b *NATSBus) Subscribe(ctx context.Context, pattern string, handler func(channel string, payload []byte)) error {
	subject := natsSubject(pattern)
	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	if err := b.nc.Flush(); err != nil {
		return fmt.Errorf("failed to confirm subscription to %s: %w", subject, err)
	}
	b.logger.Infow("Subscribed to bus", "subject", subject)

	<-ctx.Done()
	return ctx.Err()
}

func (b *NATSBus) Close() error {
	if err := b.nc.Drain(); err != nil {
		b.nc.Close()
		return err
	}
	return nil
}

func natsSubject(pattern string) string {
	if strings.HasSuffix(pattern, ".*") {
		return pattern
	}
	return strings.ReplaceAll(pattern, "*", ">")
}
