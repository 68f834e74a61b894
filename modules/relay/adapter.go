package relay

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/signaling-relay/domain/relay"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// RoomQueryPort defines read-only room queries for other modules.
type RoomQueryPort interface {
	ListRooms(ctx context.Context) (*ListRoomsResponse, error)
	GetRoom(ctx context.Context, roomID string) (*domain.RoomSnapshot, bool, error)
}

// RoomQueryAdapter implements RoomQueryPort using the service container.
type RoomQueryAdapter struct {
	container mono.ServiceContainer
}

// NewRoomQueryAdapter creates a new RoomQueryAdapter.
func NewRoomQueryAdapter(container mono.ServiceContainer) RoomQueryPort {
	if container == nil {
		panic("relay: ServiceContainer is nil")
	}
	return &RoomQueryAdapter{container: container}
}

// ListRooms returns every live room.
func (a *RoomQueryAdapter) ListRooms(ctx context.Context) (*ListRoomsResponse, error) {
	req := ListRoomsRequest{}
	var resp ListRoomsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListRooms,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return &resp, nil
}

// GetRoom returns a room snapshot. The bool is false when the room does not exist.
func (a *RoomQueryAdapter) GetRoom(ctx context.Context, roomID string) (*domain.RoomSnapshot, bool, error) {
	req := GetRoomRequest{RoomID: roomID}
	var resp GetRoomResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetRoom,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, false, fmt.Errorf("failed to get room: %w", err)
	}
	if !resp.Found || resp.Room == nil {
		return nil, false, nil
	}
	return resp.Room, true, nil
}
