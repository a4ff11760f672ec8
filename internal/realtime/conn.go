package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/relayworks/server/internal/tenant"
)

const sendQueueDepth = 64

// Conn is one live websocket session, bound to a verified scope for its
// whole lifetime. The scope is fixed at handshake; a role revoked while
// connected is only observed by subsequent REST calls.
type Conn struct {
	scope tenant.Scope
	sock  *websocket.Conn

	sendMu sync.Mutex
	send   chan Push
	closed bool

	lastSeen atomicTime
}

func newConn(scope tenant.Scope, sock *websocket.Conn) *Conn {
	c := &Conn{
		scope: scope,
		sock:  sock,
		send:  make(chan Push, sendQueueDepth),
	}
	c.lastSeen.Store(time.Now())
	return c
}

// Scope returns the identity bound at handshake.
func (c *Conn) Scope() tenant.Scope {
	return c.scope
}

// trySend queues a push without blocking. A full queue or a closed
// connection drops the push; delivery is at-most-once.
func (c *Conn) trySend(push Push) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- push:
		return true
	default:
		return false
	}
}

func (c *Conn) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writeLoop drains the send queue onto the socket. Returning tears the
// connection down; a write that cannot complete within the timeout counts
// as a dead peer.
func (c *Conn) writeLoop(ctx context.Context, writeTimeout time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case push, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, c.sock, push)
			cancel()
			if err != nil {
				_ = c.sock.Close(websocket.StatusNormalClosure, "write failed")
				return
			}
		}
	}
}

type atomicTime struct {
	mu sync.Mutex
	t  time.Time
}

func (a *atomicTime) Store(t time.Time) {
	a.mu.Lock()
	a.t = t
	a.mu.Unlock()
}

func (a *atomicTime) Load() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.t
}
