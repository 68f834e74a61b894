package stats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/signaling-relay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module consumes relay lifecycle events and keeps activity counters.
type Module struct {
	counters *Counters
	logger   types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
)

// NewModule creates a new stats module.
func NewModule(logger types.Logger) *Module {
	return &Module{
		counters: NewCounters(),
		logger:   logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "stats"
}

// RegisterEventConsumers subscribes to relay lifecycle events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.PeerJoinedV1, m.handlePeerJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register PeerJoined consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.PeerLeftV1, m.handlePeerLeft, m,
	); err != nil {
		return fmt.Errorf("failed to register PeerLeft consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.ActionBroadcastV1, m.handleActionBroadcast, m,
	); err != nil {
		return fmt.Errorf("failed to register ActionBroadcast consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomClosedV1, m.handleRoomClosed, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomClosed consumer: %w", err)
	}

	m.logger.Info("Registered event consumers",
		"events", []string{"PeerJoined.v1", "PeerLeft.v1", "ActionBroadcast.v1", "RoomClosed.v1"})
	return nil
}

// RegisterServices registers the get-stats service.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := container.RegisterRequestReplyService(ServiceGetStats, m.handleGetStats); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetStats, err)
	}
	m.logger.Info("Registered stats services", "services", []string{ServiceGetStats})
	return nil
}

// Start initializes the stats module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Stats module started")
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	s := m.counters.Snapshot()
	m.logger.Info("Stats module stopped",
		"peersJoined", s.PeersJoined,
		"actionsRelayed", s.ActionsRelayed)
	return nil
}

// Counters returns the underlying counters.
func (m *Module) Counters() *Counters {
	return m.counters
}

func (m *Module) handlePeerJoined(_ context.Context, event events.PeerJoinedEvent, _ *mono.Msg) error {
	m.counters.RecordJoin(event.Timestamp)
	m.logger.Debug("Recorded peer join", "roomID", event.RoomID, "members", event.TotalMembers)
	return nil
}

func (m *Module) handlePeerLeft(_ context.Context, event events.PeerLeftEvent, _ *mono.Msg) error {
	m.counters.RecordLeave(event.Timestamp)
	m.logger.Debug("Recorded peer leave", "roomID", event.RoomID, "remaining", event.RemainingMembers)
	return nil
}

func (m *Module) handleActionBroadcast(_ context.Context, event events.ActionBroadcastEvent, _ *mono.Msg) error {
	m.counters.RecordAction(event.Recipients, event.Timestamp)
	return nil
}

func (m *Module) handleRoomClosed(_ context.Context, event events.RoomClosedEvent, _ *mono.Msg) error {
	m.counters.RecordRoomClosed(event.Timestamp)
	m.logger.Debug("Recorded room closed", "roomID", event.RoomID)
	return nil
}

func (m *Module) handleGetStats(_ context.Context, _ *mono.Msg) ([]byte, error) {
	return json.Marshal(m.counters.Snapshot())
}
