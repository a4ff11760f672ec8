package realtime

import (
	"sync"

	"github.com/relayworks/server/internal/metrics"
)

// Hub is the in-process registry of rooms and the connections joined to
// them. Membership is transient: removing a connection releases all of its
// rooms, with no per-room bookkeeping required by callers.
type Hub struct {
	mu    sync.RWMutex
	rooms map[Room]map[*Conn]struct{}
	conns map[*Conn]map[Room]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[Room]map[*Conn]struct{}),
		conns: make(map[*Conn]map[Room]struct{}),
	}
}

func (h *Hub) Join(conn *Conn, room Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; !ok {
		h.conns[conn] = make(map[Room]struct{})
		metrics.RealtimeConnections.Inc()
	}
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Conn]struct{})
	}
	h.rooms[room][conn] = struct{}{}
	h.conns[conn][room] = struct{}{}
}

func (h *Hub) Leave(conn *Conn, room Room) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(conn, room)
}

func (h *Hub) leaveLocked(conn *Conn, room Room) {
	if members, ok := h.rooms[room]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.conns[conn]; ok {
		delete(rooms, room)
	}
}

// Remove drops the connection and every room membership it holds.
func (h *Hub) Remove(conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rooms, ok := h.conns[conn]
	if !ok {
		return
	}
	for room := range rooms {
		h.leaveLocked(conn, room)
	}
	delete(h.conns, conn)
	metrics.RealtimeConnections.Dec()
}

// InRoom reports whether the connection currently holds a membership.
func (h *Hub) InRoom(conn *Conn, room Room) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][conn]
	return ok
}

// RoomSize returns the number of local connections joined to the room.
func (h *Hub) RoomSize(room Room) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast queues the push on every local connection in the room. Sends
// never block: a connection too slow to drain its queue is dropped, which
// is consistent with at-most-once delivery.
func (h *Hub) Broadcast(room Room, push Push) {
	h.mu.RLock()
	targets := make([]*Conn, 0, len(h.rooms[room]))
	for conn := range h.rooms[room] {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	for _, conn := range targets {
		if conn.trySend(push) {
			metrics.RealtimeEventsDelivered.WithLabelValues(push.Event).Inc()
		}
	}
}
