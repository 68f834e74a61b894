package broadcast

import (
	"context"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
)

// BroadcastModule owns the WebSocket hub used to deliver relay envelopes.
type BroadcastModule struct {
	hub       *Hub
	config    ClientConfig
	cancelHub context.CancelFunc
	logger    types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*BroadcastModule)(nil)
var _ mono.HealthCheckableModule = (*BroadcastModule)(nil)

// NewModule creates a new BroadcastModule.
func NewModule(config ClientConfig, logger types.Logger) *BroadcastModule {
	defaults := DefaultClientConfig()
	if config.SendBuffer <= 0 {
		config.SendBuffer = defaults.SendBuffer
	}
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.WriteWait <= 0 {
		config.WriteWait = defaults.WriteWait
	}
	return &BroadcastModule{
		hub:    NewHub(logger),
		config: config,
		logger: logger,
	}
}

// Name returns the module name.
func (m *BroadcastModule) Name() string {
	return "broadcast"
}

// Start starts the hub.
func (m *BroadcastModule) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	m.logger.Info("Broadcast module started", "sendBuffer", m.config.SendBuffer)
	return nil
}

// Stop shuts down the hub and closes all clients.
func (m *BroadcastModule) Stop(_ context.Context) error {
	clientCount := m.hub.ClientCount()
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	m.logger.Info("Broadcast module stopped", "clients", clientCount)
	return nil
}

// Health returns the health status.
func (m *BroadcastModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// GetHub returns the WebSocket hub for the API and relay modules.
func (m *BroadcastModule) GetHub() *Hub {
	return m.hub
}

// ClientConfig returns the per-connection write settings.
func (m *BroadcastModule) ClientConfig() ClientConfig {
	return m.config
}
