// Package redisbus connects the reconciler to Redis pub/sub: tenant mutations
// published on the trigger channel start a pass early, and every pass that
// changes the zone directory is announced on the notify channel.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/poyrazK/zonewriter/internal/core/domain"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultTriggerChannel = "cdn:domains:changed"
	DefaultNotifyChannel  = "cdn:zones:updated"
)

type Bus struct {
	client         *redis.Client
	triggerChannel string
	notifyChannel  string
	logger         *slog.Logger
}

func NewBus(addr string, password string, db int, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Bus{
		client:         rdb,
		triggerChannel: DefaultTriggerChannel,
		notifyChannel:  DefaultNotifyChannel,
		logger:         logger,
	}
}

// WithChannels overrides the trigger and notify channel names. Empty values
// keep the current ones.
func (b *Bus) WithChannels(trigger, notify string) *Bus {
	if trigger != "" {
		b.triggerChannel = trigger
	}
	if notify != "" {
		b.notifyChannel = notify
	}
	return b
}

func (b *Bus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *Bus) Close() error {
	return b.client.Close()
}

// Subscribe waits for the subscription to be confirmed and returns a channel
// that receives one value per burst of trigger messages. The channel is
// closed when ctx is done or the subscription ends.
func (b *Bus) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	pubsub := b.client.Subscribe(ctx, b.triggerChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", b.triggerChannel, err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer func() {
			if err := pubsub.Close(); err != nil {
				b.logger.Debug("failed to close subscription", "error", err)
			}
		}()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				b.logger.Debug("received reconcile trigger", "channel", msg.Channel, "payload", msg.Payload)
				// Coalesce: one pending signal is enough to cover any burst.
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

// Notify publishes update as JSON on the notify channel.
func (b *Bus) Notify(ctx context.Context, update domain.ZoneUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("encode zone update: %w", err)
	}
	return b.client.Publish(ctx, b.notifyChannel, payload).Err()
}
