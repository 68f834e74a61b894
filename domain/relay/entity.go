package relay

import "encoding/json"

// Identity is what a connection is bound to once it has joined a room.
type Identity struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
}

// Peer represents a connection as seen by other members of its room.
type Peer struct {
	ConnectionID string `json:"connectionId"`
	DisplayName  string `json:"displayName"`
}

// ActionRecord is the last caption a display name broadcast in a room.
// Timestamp is echoed exactly as the client sent it, or server Unix
// milliseconds when the client sent none.
type ActionRecord struct {
	ConnectionID string          `json:"connectionId"`
	DisplayName  string          `json:"displayName"`
	Action       string          `json:"action"`
	Timestamp    json.RawMessage `json:"timestamp"`

	// Seq is the server receipt order within the room.
	Seq uint64 `json:"-"`
}

// RoomSummary is a lightweight view of a room.
type RoomSummary struct {
	RoomID        string `json:"room_id"`
	Members       int    `json:"members"`
	CachedActions int    `json:"cached_actions"`
}

// RoomSnapshot is a point-in-time copy of a room's state.
type RoomSnapshot struct {
	RoomID      string         `json:"room_id"`
	Members     []Peer         `json:"members"`
	LastActions []ActionRecord `json:"last_actions"`
}

// Envelope is a single outbound message.
type Envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}
