package broadcast

import (
	"context"
	"encoding/json"
	"sync"

	domain "github.com/example/signaling-relay/domain/relay"
	"github.com/go-monolith/mono/pkg/types"
)

// Hub tracks connected clients and queues outbound envelopes for them.
// Sends never block: a client whose queue is full misses the envelope.
type Hub struct {
	clients map[string]*Client // clientID -> Client
	done    chan struct{}
	mu      sync.RWMutex
	logger  types.Logger
}

// NewHub creates a new Hub.
func NewHub(logger types.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		done:    make(chan struct{}),
		logger:  logger,
	}
}

// Run blocks until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.logger.Info("Hub shutting down")
	h.closeAllClients()
	close(h.done)
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.closeSend()
	}
	h.clients = make(map[string]*Client)
}

// Register adds a client to the hub. A client with the same ID is replaced.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.clients[client.ID]; ok && old != client {
		old.closeSend()
	}
	h.clients[client.ID] = client
	h.logger.Debug("Client registered", "clientID", client.ID)
}

// Unregister removes a client and closes its queue.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.clients[client.ID]; ok && current == client {
		delete(h.clients, client.ID)
		h.logger.Debug("Client unregistered", "clientID", client.ID)
	}
	client.closeSend()
}

// Send queues an envelope for one client. It reports false when the client
// is unknown, its queue is full, or the envelope cannot be encoded.
func (h *Hub) Send(clientID string, env domain.Envelope) bool {
	return h.Broadcast([]string{clientID}, env) == 1
}

// Broadcast encodes an envelope once and queues the frame for every listed
// client. It returns the number of clients the frame was queued for.
func (h *Hub) Broadcast(clientIDs []string, env domain.Envelope) int {
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("Failed to marshal envelope", "type", env.Type, "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, clientID := range clientIDs {
		client, ok := h.clients[clientID]
		if !ok {
			continue
		}
		select {
		case client.send <- data:
			delivered++
		default:
			h.logger.Warn("Client send buffer full, dropping envelope",
				"clientID", clientID,
				"type", env.Type)
		}
	}
	return delivered
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
