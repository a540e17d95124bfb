package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mazadapp/mazad/internal/domain"
)

// EventBus implements domain.EventBus on Redis pub/sub. Services publish bid
// and conclusion events here; the WebSocket hub subscribes and fans them out
// to connected clients.
type EventBus struct {
	rdb *redis.Client
}

// NewEventBus creates an EventBus backed by the given Client.
func NewEventBus(c *Client) *EventBus {
	return &EventBus{rdb: c.Underlying()}
}

func eventChannel(name string) string {
	return "events:" + name
}

// Publish sends data on the named channel. Delivery is fire-and-forget:
// subscribers that are not listening miss the message.
func (b *EventBus) Publish(ctx context.Context, channel string, data []byte) error {
	if err := b.rdb.Publish(ctx, eventChannel(channel), data).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a receive channel for the given pattern channels and a
// stop function. Channel names may include glob patterns ("product:*").
func (b *EventBus) Subscribe(ctx context.Context, channels ...string) (<-chan domain.EventMessage, func(), error) {
	patterns := make([]string, len(channels))
	for i, ch := range channels {
		patterns[i] = eventChannel(ch)
	}

	sub := b.rdb.PSubscribe(ctx, patterns...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("redis: subscribe %v: %w", channels, err)
	}

	out := make(chan domain.EventMessage, 64)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			m := domain.EventMessage{
				Channel: stripPrefix(msg.Channel),
				Data:    []byte(msg.Payload),
			}
			select {
			case out <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	stop := func() { _ = sub.Close() }
	return out, stop, nil
}

func stripPrefix(channel string) string {
	const prefix = "events:"
	if len(channel) > len(prefix) && channel[:len(prefix)] == prefix {
		return channel[len(prefix):]
	}
	return channel
}

// Compile-time interface check.
var _ domain.EventBus = (*EventBus)(nil)
