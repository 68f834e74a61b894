package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/example/signaling-relay/domain/relay"
	"github.com/example/signaling-relay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// Module owns the relay state and publishes room lifecycle events.
type Module struct {
	registry  *Registry
	directory *Directory
	handler   *Handler
	eventBus  mono.EventBus
	logger    types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ Observer                   = (*Module)(nil)
)

// NewModule creates a relay module sending through transport. defaultRoom
// may be empty.
func NewModule(transport Transport, defaultRoom string, logger types.Logger) *Module {
	m := &Module{
		registry:  NewRegistry(),
		directory: NewDirectory(),
		logger:    logger,
	}
	m.handler = NewHandler(m.registry, m.directory, transport, logger,
		WithObserver(m),
		WithDefaultRoom(defaultRoom),
	)
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "relay"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.PeerJoinedV1.ToBase(),
		events.PeerLeftV1.ToBase(),
		events.ActionBroadcastV1.ToBase(),
		events.RoomClosedV1.ToBase(),
	}
}

// RegisterServices registers request-reply services for room queries.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := container.RegisterRequestReplyService(ServiceListRooms, m.handleListRooms); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListRooms, err)
	}
	if err := container.RegisterRequestReplyService(ServiceGetRoom, m.handleGetRoom); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetRoom, err)
	}

	m.logger.Info("Registered relay services",
		"services", []string{ServiceListRooms, ServiceGetRoom})
	return nil
}

// Start initializes the relay module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Relay module started")
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Relay module stopped",
		"connections", m.registry.Len(),
		"rooms", m.directory.Len())
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connections": m.registry.Len(),
			"rooms":       m.directory.Len(),
		},
	}
}

// Handler returns the protocol handler used by the transport.
func (m *Module) Handler() *Handler {
	return m.handler
}

func (m *Module) handleListRooms(_ context.Context, _ *mono.Msg) ([]byte, error) {
	return json.Marshal(ListRoomsResponse{
		Rooms:       m.directory.Rooms(),
		Connections: m.registry.Len(),
	})
}

func (m *Module) handleGetRoom(_ context.Context, msg *mono.Msg) ([]byte, error) {
	var req GetRoomRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	snapshot, ok := m.directory.Snapshot(req.RoomID)
	if !ok {
		return json.Marshal(GetRoomResponse{Found: false})
	}
	return json.Marshal(GetRoomResponse{Found: true, Room: &snapshot})
}

// Observer implementation. Publish failures never affect relaying.

// PeerJoined publishes PeerJoined.v1.
func (m *Module) PeerJoined(_ context.Context, roomID string, peer domain.Peer, totalMembers int) {
	if m.eventBus == nil {
		return
	}
	event := events.PeerJoinedEvent{
		RoomID:       roomID,
		ConnectionID: peer.ConnectionID,
		DisplayName:  peer.DisplayName,
		TotalMembers: totalMembers,
		Timestamp:    time.Now(),
	}
	if err := events.PeerJoinedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish PeerJoined event", "roomID", roomID, "error", err)
	}
}

// PeerLeft publishes PeerLeft.v1.
func (m *Module) PeerLeft(_ context.Context, roomID string, peer domain.Peer, remainingMembers int) {
	if m.eventBus == nil {
		return
	}
	event := events.PeerLeftEvent{
		RoomID:           roomID,
		ConnectionID:     peer.ConnectionID,
		DisplayName:      peer.DisplayName,
		RemainingMembers: remainingMembers,
		Timestamp:        time.Now(),
	}
	if err := events.PeerLeftV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish PeerLeft event", "roomID", roomID, "error", err)
	}
}

// ActionBroadcast publishes ActionBroadcast.v1.
func (m *Module) ActionBroadcast(_ context.Context, roomID string, record domain.ActionRecord, recipients int) {
	if m.eventBus == nil {
		return
	}
	event := events.ActionBroadcastEvent{
		RoomID:       roomID,
		ConnectionID: record.ConnectionID,
		DisplayName:  record.DisplayName,
		Recipients:   recipients,
		Timestamp:    time.Now(),
	}
	if err := events.ActionBroadcastV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish ActionBroadcast event", "roomID", roomID, "error", err)
	}
}

// RoomClosed publishes RoomClosed.v1.
func (m *Module) RoomClosed(_ context.Context, roomID string) {
	if m.eventBus == nil {
		return
	}
	event := events.RoomClosedEvent{RoomID: roomID, Timestamp: time.Now()}
	if err := events.RoomClosedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish RoomClosed event", "roomID", roomID, "error", err)
	}
}
