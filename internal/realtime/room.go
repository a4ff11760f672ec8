// Package realtime is the live-collaboration layer: authenticated
// websocket connections, room membership, and cross-process event
// broadcast over a pub/sub backplane.
package realtime

import "fmt"

// Room is an addressable broadcast scope. Rooms are derived from scope
// parameters, never stored; joining one is what subscribes a connection to
// pushes for that scope.
type Room string

func UserRoom(userID string) Room {
	return Room("user:" + userID)
}

func TenantRoom(tenantID string) Room {
	return Room("tenant:" + tenantID)
}

func ProjectRoom(tenantID, projectID string) Room {
	return Room(fmt.Sprintf("tenant:%s:project:%s", tenantID, projectID))
}

func ChannelRoom(tenantID, channelID string) Room {
	return Room(fmt.Sprintf("tenant:%s:channel:%s", tenantID, channelID))
}
