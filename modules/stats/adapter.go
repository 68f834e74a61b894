package stats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
)

// StatsPort defines the interface for reading relay counters.
type StatsPort interface {
	GetStats(ctx context.Context) (*Snapshot, error)
}

// statsAdapter implements StatsPort using the service container.
type statsAdapter struct {
	container mono.ServiceContainer
}

// NewStatsAdapter creates a new adapter for the stats service.
func NewStatsAdapter(container mono.ServiceContainer) StatsPort {
	return &statsAdapter{container: container}
}

// GetStats retrieves the current counters.
func (a *statsAdapter) GetStats(ctx context.Context) (*Snapshot, error) {
	client, err := a.container.GetRequestReplyService(ServiceGetStats)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s service: %w", ServiceGetStats, err)
	}

	resp, err := client.Call(ctx, []byte{})
	if err != nil {
		return nil, fmt.Errorf("%s service call failed: %w", ServiceGetStats, err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(resp.Data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &snapshot, nil
}
