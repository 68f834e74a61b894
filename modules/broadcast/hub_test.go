package broadcast

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	domain "github.com/example/signaling-relay/domain/relay"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
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

func TestHub_SendQueuesEncodedEnvelope(t *testing.T) {
	hub := NewHub(&mockLogger{})
	client := NewClient("c1", nil, 4)
	hub.Register(client)

	ok := hub.Send("c1", domain.Envelope{Type: "userLeft", Payload: domain.Peer{ConnectionID: "c2", DisplayName: "Bob"}})
	require.True(t, ok)

	select {
	case data := <-client.send:
		assert.JSONEq(t, `{"type":"userLeft","payload":{"connectionId":"c2","displayName":"Bob"}}`, string(data))
	default:
		t.Fatal("expected queued frame")
	}
}

func TestHub_SendUnknownClient(t *testing.T) {
	hub := NewHub(&mockLogger{})
	assert.False(t, hub.Send("missing", domain.Envelope{Type: "x"}))
}

func TestHub_SendDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(&mockLogger{})
	client := NewClient("slow", nil, 2)
	hub.Register(client)

	assert.True(t, hub.Send("slow", domain.Envelope{Type: "a"}))
	assert.True(t, hub.Send("slow", domain.Envelope{Type: "b"}))
	assert.False(t, hub.Send("slow", domain.Envelope{Type: "c"}))

	var env domain.Envelope
	require.NoError(t, json.Unmarshal(<-client.send, &env))
	assert.Equal(t, "a", env.Type)
}

func TestHub_SendUnencodablePayload(t *testing.T) {
	hub := NewHub(&mockLogger{})
	hub.Register(NewClient("c1", nil, 1))

	assert.False(t, hub.Send("c1", domain.Envelope{Type: "bad", Payload: make(chan int)}))
}

func TestHub_UnregisterClosesQueue(t *testing.T) {
	hub := NewHub(&mockLogger{})
	client := NewClient("c1", nil, 1)
	hub.Register(client)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister(client)
	assert.Equal(t, 0, hub.ClientCount())

	_, open := <-client.send
	assert.False(t, open)
	assert.False(t, hub.Send("c1", domain.Envelope{Type: "x"}))

	// Unregistering twice is safe.
	hub.Unregister(client)
}

func TestHub_RegisterReplacesClient(t *testing.T) {
	hub := NewHub(&mockLogger{})
	old := NewClient("c1", nil, 1)
	replacement := NewClient("c1", nil, 1)
	hub.Register(old)
	hub.Register(replacement)

	_, open := <-old.send
	assert.False(t, open)
	assert.Equal(t, 1, hub.ClientCount())

	// The stale client must not remove its replacement.
	hub.Unregister(old)
	assert.Equal(t, 1, hub.ClientCount())
	assert.True(t, hub.Send("c1", domain.Envelope{Type: "x"}))
}

func TestHub_RunClosesClientsOnShutdown(t *testing.T) {
	hub := NewHub(&mockLogger{})
	client := NewClient("c1", nil, 1)
	hub.Register(client)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		hub.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	assert.Equal(t, 0, hub.ClientCount())
	_, open := <-client.send
	assert.False(t, open)

	// Late unregister after shutdown is safe.
	hub.Unregister(client)
}

func TestHub_ConcurrentSendAndUnregister(t *testing.T) {
	hub := NewHub(&mockLogger{})
	clients := make([]*Client, 20)
	for i := range clients {
		clients[i] = NewClient(string(rune('a'+i)), nil, 8)
		hub.Register(clients[i])
	}

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(2)
		go func(c *Client) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				hub.Send(c.ID, domain.Envelope{Type: "action"})
			}
		}(c)
		go func(c *Client) {
			defer wg.Done()
			hub.Unregister(c)
		}(c)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.ClientCount())
}

func TestNewModule_AppliesDefaults(t *testing.T) {
	m := NewModule(ClientConfig{SendBuffer: 8}, &mockLogger{})

	cfg := m.ClientConfig()
	assert.Equal(t, 8, cfg.SendBuffer)
	assert.Equal(t, DefaultClientConfig().PingInterval, cfg.PingInterval)
	assert.Equal(t, DefaultClientConfig().WriteWait, cfg.WriteWait)
	assert.Equal(t, "broadcast", m.Name())
}

func TestModule_StartStop(t *testing.T) {
	m := NewModule(DefaultClientConfig(), &mockLogger{})
	ctx := context.Background()

	require.NoError(t, m.Start(ctx))
	client := NewClient("c1", nil, 1)
	m.GetHub().Register(client)
	assert.Equal(t, 1, m.Health(ctx).Details["connected_clients"])

	require.NoError(t, m.Stop(ctx))
	_, open := <-client.send
	assert.False(t, open)
}

func TestHub_BroadcastEncodesOnce(t *testing.T) {
	hub := NewHub(&mockLogger{})
	c1 := NewClient("c1", nil, 4)
	c2 := NewClient("c2", nil, 4)
	full := NewClient("full", nil, 1)
	hub.Register(c1)
	hub.Register(c2)
	hub.Register(full)
	require.True(t, hub.Send("full", domain.Envelope{Type: "filler"}))

	n := hub.Broadcast([]string{"c1", "c2", "full", "missing"}, domain.Envelope{
		Type:    "action",
		Payload: domain.ActionRecord{ConnectionID: "c1", DisplayName: "Alice", Action: "hi", Timestamp: json.RawMessage(`"2026-10-18T07:00:00.000Z"`)},
	})
	assert.Equal(t, 2, n)

	f1 := <-c1.send
	f2 := <-c2.send
	assert.JSONEq(t, `{"type":"action","payload":{"connectionId":"c1","displayName":"Alice","action":"hi","timestamp":"2026-10-18T07:00:00.000Z"}}`, string(f1))
	// Every recipient gets the same encoded frame.
	assert.Same(t, &f1[0], &f2[0])
}

func TestHub_BroadcastMarshalFailure(t *testing.T) {
	hub := NewHub(&mockLogger{})
	client := NewClient("c1", nil, 4)
	hub.Register(client)

	assert.Equal(t, 0, hub.Broadcast([]string{"c1"}, domain.Envelope{Type: "bad", Payload: make(chan int)}))
	assert.Empty(t, client.send)
}
