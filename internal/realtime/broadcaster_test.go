package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBus is an in-process backplane: publishes are recorded and can be
// injected into the subscriber, the way a second process would see them.
type fakeBus struct {
	mu        sync.Mutex
	published [][]byte
	handler   func(payload []byte)
	ready     chan struct{}
}

func newFakeBus() *fakeBus {
	return &fakeBus{ready: make(chan struct{})}
}

func (b *fakeBus) Publish(ctx context.Context, payload []byte) error {
	b.mu.Lock()
	b.published = append(b.published, payload)
	b.mu.Unlock()
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, handler func(payload []byte)) error {
	b.mu.Lock()
	b.handler = handler
	b.mu.Unlock()
	close(b.ready)
	<-ctx.Done()
	return ctx.Err()
}

func (b *fakeBus) inject(payload []byte) {
	b.mu.Lock()
	handler := b.handler
	b.mu.Unlock()
	if handler != nil {
		handler(payload)
	}
}

func (b *fakeBus) publishedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func (b *fakeBus) lastPublished(t *testing.T) []byte {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.published)
	return b.published[len(b.published)-1]
}

func TestBroadcasterPublishWrapsEnvelope(t *testing.T) {
	bus := newFakeBus()
	broadcaster := NewBroadcaster(bus, NewHub(), zerolog.Nop())

	room := ChannelRoom("t1", "c1")
	err := broadcaster.Publish(context.Background(), room, EventMessageNew, map[string]string{
		"message_id": "m1",
	})
	require.NoError(t, err)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(bus.lastPublished(t), &envelope))
	assert.Equal(t, room, envelope.Room)
	assert.Equal(t, EventMessageNew, envelope.Event)
	assert.JSONEq(t, `{"message_id":"m1"}`, string(envelope.Data))
	assert.WithinDuration(t, time.Now(), envelope.Timestamp, 5*time.Second)
}

func TestBroadcasterPublishRejectsUnmarshalablePayload(t *testing.T) {
	bus := newFakeBus()
	broadcaster := NewBroadcaster(bus, NewHub(), zerolog.Nop())

	err := broadcaster.Publish(context.Background(), UserRoom("u1"), EventUserStatus, make(chan int))
	require.Error(t, err)
}

func TestBroadcasterFansOutToLocalHub(t *testing.T) {
	bus := newFakeBus()
	hub := NewHub()
	broadcaster := NewBroadcaster(bus, hub, zerolog.Nop())

	conn := testConn("u1", "t1")
	room := ProjectRoom("t1", "p1")
	hub.Join(conn, room)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- broadcaster.Run(ctx) }()

	select {
	case <-bus.ready:
	case <-time.After(time.Second):
		t.Fatal("subscriber never attached")
	}

	envelope := Envelope{
		Room:      room,
		Event:     EventMessageNew,
		Data:      json.RawMessage(`{"message_id":"m1"}`),
		Timestamp: time.Now().UTC(),
	}
	raw, err := json.Marshal(envelope)
	require.NoError(t, err)
	bus.inject(raw)

	select {
	case push := <-conn.send:
		assert.Equal(t, EventMessageNew, push.Event)
		assert.JSONEq(t, `{"message_id":"m1"}`, string(push.Data))
	case <-time.After(time.Second):
		t.Fatal("push never reached the connection")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestBroadcasterDropsMalformedBackplaneMessage(t *testing.T) {
	bus := newFakeBus()
	hub := NewHub()
	broadcaster := NewBroadcaster(bus, hub, zerolog.Nop())

	conn := testConn("u1", "t1")
	hub.Join(conn, UserRoom("u1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = broadcaster.Run(ctx) }()
	<-bus.ready

	bus.inject([]byte("not json"))

	select {
	case <-conn.send:
		t.Fatal("malformed message must not be delivered")
	case <-time.After(50 * time.Millisecond):
	}
}
