package realtime

import (
	"encoding/json"
	"time"
)

// Control actions a client may send. Every control frame is acknowledged
// with an Ack carrying the frame's correlation id.
const (
	ActionJoinProject  = "join:project"
	ActionJoinChannel  = "join:channel"
	ActionLeaveProject = "leave:project"
	ActionLeaveChannel = "leave:channel"
	ActionTypingStart  = "typing:start"
	ActionTypingStop   = "typing:stop"
	ActionHeartbeat    = "heartbeat"
)

// Push event names delivered to rooms.
const (
	EventMessageNew      = "message:new"
	EventNotificationNew = "notification:new"
	EventUserTyping      = "user:typing"
	EventUserStatus      = "user:status"
)

// Command is a client→server control frame.
type Command struct {
	ID     string `json:"id"`
	Action string `json:"action"`
	Target string `json:"target,omitempty"`
}

// Ack is the server's response to a Command.
type Ack struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Push is a server→client event. Data is the entity payload; Timestamp is
// when the event was published, ISO-8601.
type Push struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Envelope is the backplane wire form: a Push plus the room it targets.
type Envelope struct {
	Room      Room            `json:"room"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func (e Envelope) push() Push {
	return Push{Event: e.Event, Data: e.Data, Timestamp: e.Timestamp}
}
