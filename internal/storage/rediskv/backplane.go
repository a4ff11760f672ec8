package rediskv

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/relayworks/server/internal/realtime"
)

var _ realtime.Bus = (*Backplane)(nil)

// Backplane distributes realtime envelopes across server processes over a
// single Redis pub/sub channel. Each process publishes here and runs one
// subscriber feeding its local hub. Delivery is at-most-once: a process
// that is down misses messages, and clients reconcile by re-fetching.
type Backplane struct {
	client  *redis.Client
	channel string
}

func NewBackplane(client *redis.Client, channel string) (*Backplane, error) {
	if client == nil {
		return nil, fmt.Errorf("backplane: client is nil")
	}
	if channel == "" {
		channel = "relayworks:realtime"
	}
	return &Backplane{client: client, channel: channel}, nil
}

func (b *Backplane) Publish(ctx context.Context, payload []byte) error {
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("backplane: publish: %w", err)
	}
	return nil
}

// Subscribe delivers every envelope published by any process to handler,
// in channel order, until ctx is cancelled.
func (b *Backplane) Subscribe(ctx context.Context, handler func(payload []byte)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() { _ = sub.Close() }()

	// Force the subscription to be established before returning control
	// to the message loop, so publishes from this process are not lost
	// during startup.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("backplane: subscribe: %w", err)
	}

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("backplane: subscription closed")
			}
			handler([]byte(msg.Payload))
		}
	}
}
