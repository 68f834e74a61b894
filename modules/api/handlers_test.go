package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/signaling-relay/config"
	domain "github.com/example/signaling-relay/domain/relay"
	"github.com/example/signaling-relay/modules/broadcast"
	"github.com/example/signaling-relay/modules/relay"
	"github.com/example/signaling-relay/modules/stats"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
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

type fakeRooms struct {
	rooms map[string]*domain.RoomSnapshot
	err   error
}

func (f *fakeRooms) ListRooms(_ context.Context) (*relay.ListRoomsResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	resp := &relay.ListRoomsResponse{Rooms: []domain.RoomSummary{}}
	for id, snap := range f.rooms {
		resp.Rooms = append(resp.Rooms, domain.RoomSummary{
			RoomID:        id,
			Members:       len(snap.Members),
			CachedActions: len(snap.LastActions),
		})
		resp.Connections += len(snap.Members)
	}
	return resp, nil
}

func (f *fakeRooms) GetRoom(_ context.Context, roomID string) (*domain.RoomSnapshot, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	snap, ok := f.rooms[roomID]
	return snap, ok, nil
}

type fakeStats struct {
	snapshot stats.Snapshot
	err      error
}

func (f *fakeStats) GetStats(_ context.Context) (*stats.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := f.snapshot
	return &s, nil
}

type nopSessions struct{}

func (nopSessions) Open(id string) *relay.Session                               { return &relay.Session{ID: id} }
func (nopSessions) Handle(context.Context, *relay.Session, relay.Inbound) error { return nil }
func (nopSessions) Disconnect(context.Context, *relay.Session)                  {}

func newTestModule(t *testing.T, rooms *fakeRooms, st *fakeStats) (*APIModule, *fiber.App) {
	t.Helper()
	cfg := config.Default()
	cfg.ConnectLimit = 2
	cfg.ConnectWindow = time.Minute

	m := NewModule(cfg, &mockLogger{})
	m.rooms = rooms
	m.stats = st
	m.SetHub(broadcast.NewHub(&mockLogger{}), broadcast.DefaultClientConfig())
	m.SetSessionHandler(nopSessions{})
	return m, m.newApp()
}

func doGet(t *testing.T, app *fiber.App, path string) (int, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func sampleRooms() *fakeRooms {
	return &fakeRooms{rooms: map[string]*domain.RoomSnapshot{
		"r1": {
			RoomID:  "r1",
			Members: []domain.Peer{{ConnectionID: "c1", DisplayName: "Alice"}},
			LastActions: []domain.ActionRecord{
				{ConnectionID: "c1", DisplayName: "Alice", Action: "hi", Timestamp: json.RawMessage(`10`)},
			},
		},
	}}
}

func TestModule_Basics(t *testing.T) {
	m := NewModule(nil, &mockLogger{})

	assert.Equal(t, "api", m.Name())
	assert.Equal(t, []string{"relay", "stats"}, m.Dependencies())
	assert.Equal(t, "3000", m.cfg.Port)
}

func TestModule_StartRequiresDependencies(t *testing.T) {
	m := NewModule(config.Default(), &mockLogger{})

	err := m.Start(context.Background())
	assert.Error(t, err)
	assert.Nil(t, m.app)
}

func TestHealthHandler(t *testing.T) {
	_, app := newTestModule(t, sampleRooms(), &fakeStats{})

	status, body := doGet(t, app, "/health")
	assert.Equal(t, fiber.StatusOK, status)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.EqualValues(t, 0, resp.Details["connected_clients"])
	assert.EqualValues(t, 1, resp.Details["rooms"])
}

func TestListRooms(t *testing.T) {
	_, app := newTestModule(t, sampleRooms(), &fakeStats{})

	status, body := doGet(t, app, "/api/v1/rooms")
	assert.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"rooms":[{"room_id":"r1","members":1,"cached_actions":1}],"connections":1}`, string(body))
}

func TestListRooms_Error(t *testing.T) {
	_, app := newTestModule(t, &fakeRooms{err: errors.New("boom")}, &fakeStats{})

	status, body := doGet(t, app, "/api/v1/rooms")
	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Contains(t, string(body), "list_failed")
}

func TestGetRoom(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		rooms      *fakeRooms
		wantStatus int
		wantBody   string
	}{
		{
			name:       "existing room",
			path:       "/api/v1/rooms/r1",
			rooms:      sampleRooms(),
			wantStatus: fiber.StatusOK,
		},
		{
			name:       "missing room",
			path:       "/api/v1/rooms/none",
			rooms:      sampleRooms(),
			wantStatus: fiber.StatusNotFound,
			wantBody:   "not_found",
		},
		{
			name:       "room id too long",
			path:       "/api/v1/rooms/" + strings.Repeat("x", relay.MaxRoomIDLength+1),
			rooms:      sampleRooms(),
			wantStatus: fiber.StatusBadRequest,
			wantBody:   "validation_error",
		},
		{
			name:       "service failure",
			path:       "/api/v1/rooms/r1",
			rooms:      &fakeRooms{err: errors.New("boom")},
			wantStatus: fiber.StatusInternalServerError,
			wantBody:   "get_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, app := newTestModule(t, tt.rooms, &fakeStats{})

			status, body := doGet(t, app, tt.path)
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantStatus == fiber.StatusOK {
				var snap domain.RoomSnapshot
				require.NoError(t, json.Unmarshal(body, &snap))
				assert.Equal(t, "r1", snap.RoomID)
				require.Len(t, snap.Members, 1)
				assert.Equal(t, "Alice", snap.Members[0].DisplayName)
				require.Len(t, snap.LastActions, 1)
				assert.Equal(t, "hi", snap.LastActions[0].Action)
				return
			}
			assert.Contains(t, string(body), tt.wantBody)
		})
	}
}

func TestGetStats(t *testing.T) {
	_, app := newTestModule(t, sampleRooms(), &fakeStats{snapshot: stats.Snapshot{PeersJoined: 3, ActionsRelayed: 7}})

	status, body := doGet(t, app, "/api/v1/stats")
	assert.Equal(t, fiber.StatusOK, status)

	var s stats.Snapshot
	require.NoError(t, json.Unmarshal(body, &s))
	assert.Equal(t, int64(3), s.PeersJoined)
	assert.Equal(t, int64(7), s.ActionsRelayed)
}

func TestGetStats_Error(t *testing.T) {
	_, app := newTestModule(t, sampleRooms(), &fakeStats{err: errors.New("boom")})

	status, _ := doGet(t, app, "/api/v1/stats")
	assert.Equal(t, fiber.StatusInternalServerError, status)
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	_, app := newTestModule(t, sampleRooms(), &fakeStats{})

	status, _ := doGet(t, app, "/ws")
	assert.Equal(t, fiber.StatusUpgradeRequired, status)
}

func TestWebSocket_ConnectionAttemptsLimited(t *testing.T) {
	_, app := newTestModule(t, sampleRooms(), &fakeStats{})

	for i := 0; i < 2; i++ {
		status, _ := doGet(t, app, "/ws")
		assert.Equal(t, fiber.StatusUpgradeRequired, status)
	}
	status, body := doGet(t, app, "/ws")
	assert.Equal(t, fiber.StatusTooManyRequests, status)
	assert.Contains(t, string(body), "rate_limited")

	// REST endpoints are not limited.
	for i := 0; i < 5; i++ {
		status, _ := doGet(t, app, "/api/v1/rooms")
		assert.Equal(t, fiber.StatusOK, status)
	}
}
