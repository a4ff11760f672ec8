package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayworks/server/internal/tenant"
)

func testConn(userID, tenantID string) *Conn {
	return newConn(tenant.Scope{
		UserID:   userID,
		TenantID: tenantID,
		Role:     tenant.RoleMember,
	}, nil)
}

func TestHubJoinAndLeave(t *testing.T) {
	hub := NewHub()
	conn := testConn("u1", "t1")
	room := ProjectRoom("t1", "p1")

	hub.Join(conn, room)
	assert.True(t, hub.InRoom(conn, room))
	assert.Equal(t, 1, hub.RoomSize(room))

	hub.Leave(conn, room)
	assert.False(t, hub.InRoom(conn, room))
	assert.Equal(t, 0, hub.RoomSize(room))
}

func TestHubLeaveIsIdempotent(t *testing.T) {
	hub := NewHub()
	conn := testConn("u1", "t1")
	room := ChannelRoom("t1", "c1")

	hub.Leave(conn, room)
	hub.Join(conn, room)
	hub.Leave(conn, room)
	hub.Leave(conn, room)

	assert.Equal(t, 0, hub.RoomSize(room))
}

func TestHubRemoveReleasesAllRooms(t *testing.T) {
	hub := NewHub()
	conn := testConn("u1", "t1")
	rooms := []Room{
		UserRoom("u1"),
		TenantRoom("t1"),
		ProjectRoom("t1", "p1"),
		ChannelRoom("t1", "c1"),
	}
	for _, room := range rooms {
		hub.Join(conn, room)
	}

	hub.Remove(conn)

	for _, room := range rooms {
		assert.False(t, hub.InRoom(conn, room), "still joined to %s after remove", room)
		assert.Equal(t, 0, hub.RoomSize(room))
	}

	// Remove of an unknown connection is a no-op
	hub.Remove(conn)
}

func TestHubBroadcastReachesOnlyRoomMembers(t *testing.T) {
	hub := NewHub()
	member := testConn("u1", "t1")
	other := testConn("u2", "t1")
	room := ChannelRoom("t1", "c1")

	hub.Join(member, room)
	hub.Join(other, ChannelRoom("t1", "c2"))

	push := Push{
		Event:     EventMessageNew,
		Data:      json.RawMessage(`{"message_id":"m1"}`),
		Timestamp: time.Now().UTC(),
	}
	hub.Broadcast(room, push)

	select {
	case got := <-member.send:
		assert.Equal(t, EventMessageNew, got.Event)
		assert.JSONEq(t, `{"message_id":"m1"}`, string(got.Data))
	default:
		t.Fatal("member did not receive the push")
	}

	select {
	case <-other.send:
		t.Fatal("connection outside the room received the push")
	default:
	}
}

func TestHubBroadcastDropsWhenQueueFull(t *testing.T) {
	hub := NewHub()
	slow := testConn("u1", "t1")
	room := UserRoom("u1")
	hub.Join(slow, room)

	push := Push{Event: EventNotificationNew, Timestamp: time.Now().UTC()}
	for i := 0; i < sendQueueDepth+10; i++ {
		hub.Broadcast(room, push)
	}

	// The queue holds exactly its depth; the overflow was dropped, not
	// blocked on.
	require.Len(t, slow.send, sendQueueDepth)
}

func TestConnTrySendAfterClose(t *testing.T) {
	conn := testConn("u1", "t1")
	conn.closeSend()
	assert.False(t, conn.trySend(Push{Event: EventUserStatus}))

	// Closing twice must not panic
	conn.closeSend()
}
