package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/relayworks/server/internal/metrics"
)

// Bus is the cross-process distribution mechanism behind the broadcaster.
// The Redis implementation lives in internal/storage/rediskv; tests use an
// in-process fake.
type Bus interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context, handler func(payload []byte)) error
}

// Publisher is the slice of the broadcaster domain services depend on.
type Publisher interface {
	Publish(ctx context.Context, room Room, event string, payload any) error
}

// Broadcaster publishes domain events to rooms through the backplane, so
// a connection held by any process receives events published by any other.
// Events from one process reach one room in publish order; there is no
// cross-process total order, and consumers treat pushes as invalidation
// hints.
type Broadcaster struct {
	bus    Bus
	hub    *Hub
	logger zerolog.Logger
}

var _ Publisher = (*Broadcaster)(nil)

func NewBroadcaster(bus Bus, hub *Hub, logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		bus:    bus,
		hub:    hub,
		logger: logger.With().Str("component", "broadcaster").Logger(),
	}
}

func (b *Broadcaster) Publish(ctx context.Context, room Room, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("broadcast %s: marshal payload: %w", event, err)
	}

	envelope := Envelope{
		Room:      room,
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("broadcast %s: marshal envelope: %w", event, err)
	}

	if err := b.bus.Publish(ctx, raw); err != nil {
		return err
	}
	metrics.RealtimeEventsPublished.WithLabelValues(event).Inc()
	return nil
}

// Run subscribes to the backplane and fans incoming envelopes out to the
// local hub until ctx is cancelled. Exactly one Run per process.
func (b *Broadcaster) Run(ctx context.Context) error {
	return b.bus.Subscribe(ctx, func(payload []byte) {
		var envelope Envelope
		if err := json.Unmarshal(payload, &envelope); err != nil {
			b.logger.Warn().Err(err).Msg("dropping malformed backplane message")
			return
		}
		b.hub.Broadcast(envelope.Room, envelope.push())
	})
}
