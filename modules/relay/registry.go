package relay

import (
	"sync"

	domain "github.com/example/signaling-relay/domain/relay"
)

// Registry maps connection IDs to the identity they joined with.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]domain.Identity
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]domain.Identity),
	}
}

// Bind records the identity of a connection, replacing any previous entry.
func (r *Registry) Bind(connectionID, roomID, displayName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[connectionID] = domain.Identity{
		RoomID:      roomID,
		DisplayName: displayName,
	}
}

// Lookup returns the identity bound to a connection.
func (r *Registry) Lookup(connectionID string) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.entries[connectionID]
	return id, ok
}

// Unbind removes a connection and returns its last known identity.
// It reports false if the connection was never bound.
func (r *Registry) Unbind(connectionID string) (domain.Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.entries[connectionID]
	if !ok {
		return domain.Identity{}, false
	}
	delete(r.entries, connectionID)
	return id, true
}

// Len returns the number of bound connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
