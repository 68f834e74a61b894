package relay

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	domain "github.com/example/signaling-relay/domain/relay"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/require"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }

// recordingTransport keeps every envelope sent to each connection.
type recordingTransport struct {
	mu         sync.Mutex
	sent       map[string][]domain.Envelope
	broadcasts int
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{sent: make(map[string][]domain.Envelope)}
}

func (t *recordingTransport) Send(connectionID string, env domain.Envelope) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sent[connectionID] = append(t.sent[connectionID], env)
	return true
}

func (t *recordingTransport) Broadcast(connectionIDs []string, env domain.Envelope) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.broadcasts++
	for _, id := range connectionIDs {
		t.sent[id] = append(t.sent[id], env)
	}
	return len(connectionIDs)
}

// take returns and clears the envelopes queued for a connection.
func (t *recordingTransport) take(connectionID string) []domain.Envelope {
	t.mu.Lock()
	defer t.mu.Unlock()
	envs := t.sent[connectionID]
	delete(t.sent, connectionID)
	return envs
}

func (t *recordingTransport) types(connectionID string) []string {
	envs := t.take(connectionID)
	result := make([]string, 0, len(envs))
	for _, env := range envs {
		result = append(result, env.Type)
	}
	return result
}

type observed struct {
	kind   string
	roomID string
	name   string
	count  int
}

type recordingObserver struct {
	mu     sync.Mutex
	events []observed
}

func (o *recordingObserver) add(e observed) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func (o *recordingObserver) PeerJoined(_ context.Context, roomID string, peer domain.Peer, total int) {
	o.add(observed{kind: "joined", roomID: roomID, name: peer.DisplayName, count: total})
}

func (o *recordingObserver) PeerLeft(_ context.Context, roomID string, peer domain.Peer, remaining int) {
	o.add(observed{kind: "left", roomID: roomID, name: peer.DisplayName, count: remaining})
}

func (o *recordingObserver) ActionBroadcast(_ context.Context, roomID string, rec domain.ActionRecord, recipients int) {
	o.add(observed{kind: "action", roomID: roomID, name: rec.DisplayName, count: recipients})
}

func (o *recordingObserver) RoomClosed(_ context.Context, roomID string) {
	o.add(observed{kind: "closed", roomID: roomID})
}

func (o *recordingObserver) kinds() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	result := make([]string, 0, len(o.events))
	for _, e := range o.events {
		result = append(result, e.kind)
	}
	return result
}

// decodePayload converts an envelope payload into v through its JSON form.
func decodePayload(t *testing.T, env domain.Envelope, v any) {
	t.Helper()
	data, err := json.Marshal(env.Payload)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func inbound(t *testing.T, eventType string, payload any) Inbound {
	t.Helper()
	in := Inbound{Type: eventType}
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		in.Payload = data
	}
	return in
}
