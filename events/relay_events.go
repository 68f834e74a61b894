package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// PeerJoinedEvent is emitted when a connection joins a room.
type PeerJoinedEvent struct {
	RoomID       string    `json:"room_id"`
	ConnectionID string    `json:"connection_id"`
	DisplayName  string    `json:"display_name"`
	TotalMembers int       `json:"total_members"`
	Timestamp    time.Time `json:"timestamp"`
}

// PeerLeftEvent is emitted when a joined connection disconnects.
type PeerLeftEvent struct {
	RoomID           string    `json:"room_id"`
	ConnectionID     string    `json:"connection_id"`
	DisplayName      string    `json:"display_name"`
	RemainingMembers int       `json:"remaining_members"`
	Timestamp        time.Time `json:"timestamp"`
}

// ActionBroadcastEvent is emitted after an action was relayed to a room.
type ActionBroadcastEvent struct {
	RoomID       string    `json:"room_id"`
	ConnectionID string    `json:"connection_id"`
	DisplayName  string    `json:"display_name"`
	Recipients   int       `json:"recipients"`
	Timestamp    time.Time `json:"timestamp"`
}

// RoomClosedEvent is emitted when the last member leaves a room.
type RoomClosedEvent struct {
	RoomID    string    `json:"room_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the relay domain.
var (
	PeerJoinedV1 = helper.EventDefinition[PeerJoinedEvent](
		"relay",
		"PeerJoined",
		"v1",
	)

	PeerLeftV1 = helper.EventDefinition[PeerLeftEvent](
		"relay",
		"PeerLeft",
		"v1",
	)

	ActionBroadcastV1 = helper.EventDefinition[ActionBroadcastEvent](
		"relay",
		"ActionBroadcast",
		"v1",
	)

	RoomClosedV1 = helper.EventDefinition[RoomClosedEvent](
		"relay",
		"RoomClosed",
		"v1",
	)
)
