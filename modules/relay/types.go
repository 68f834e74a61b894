package relay

import domain "github.com/example/signaling-relay/domain/relay"

// Service names
const (
	ServiceListRooms = "list-rooms"
	ServiceGetRoom   = "get-room"
)

// ListRoomsRequest is the request for listing live rooms.
type ListRoomsRequest struct{}

// ListRoomsResponse is the response for listing live rooms.
type ListRoomsResponse struct {
	Rooms       []domain.RoomSummary `json:"rooms"`
	Connections int                  `json:"connections"`
}

// GetRoomRequest is the request for a room snapshot.
type GetRoomRequest struct {
	RoomID string `json:"room_id"`
}

// GetRoomResponse is the response for a room snapshot.
type GetRoomResponse struct {
	Found bool                 `json:"found"`
	Room  *domain.RoomSnapshot `json:"room,omitempty"`
}
