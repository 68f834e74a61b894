package api

import (
	"context"
	"time"

	"github.com/example/signaling-relay/modules/broadcast"
	"github.com/example/signaling-relay/modules/relay"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/google/uuid"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	app.Get("/health", m.healthHandler)

	// Connection attempts are limited per client IP; relayed frames are not.
	app.Use("/ws", limiter.New(limiter.Config{
		Max:        m.cfg.ConnectLimit,
		Expiration: m.cfg.ConnectWindow,
		Storage:    m.storage,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Error:   "rate_limited",
				Message: "Too many connection attempts",
			})
		},
	}))
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(m.handleWebSocket))

	api := app.Group("/api/v1")
	api.Get("/rooms", m.listRooms)
	api.Get("/rooms/:id", m.getRoom)
	api.Get("/stats", m.getStats)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	details := map[string]any{
		"module":            "api",
		"connected_clients": m.hub.ClientCount(),
	}
	if resp, err := m.rooms.ListRooms(c.UserContext()); err == nil {
		details["rooms"] = len(resp.Rooms)
	}
	return c.JSON(HealthResponse{
		Status:  "healthy",
		Details: details,
	})
}

// listRooms handles GET /api/v1/rooms.
func (m *APIModule) listRooms(c *fiber.Ctx) error {
	resp, err := m.rooms.ListRooms(c.UserContext())
	if err != nil {
		m.logger.Error("Failed to list rooms", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list rooms",
		})
	}
	return c.JSON(RoomListResponse{
		Rooms:       resp.Rooms,
		Connections: resp.Connections,
	})
}

// getRoom handles GET /api/v1/rooms/:id.
func (m *APIModule) getRoom(c *fiber.Ctx) error {
	roomID := c.Params("id")
	if err := relay.ValidateRoomID(roomID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid room id",
		})
	}

	room, found, err := m.rooms.GetRoom(c.UserContext(), roomID)
	if err != nil {
		m.logger.Error("Failed to get room", "roomID", roomID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "get_failed",
			Message: "Failed to get room",
		})
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Room not found",
		})
	}
	return c.JSON(room)
}

// getStats handles GET /api/v1/stats.
func (m *APIModule) getStats(c *fiber.Ctx) error {
	snapshot, err := m.stats.GetStats(c.UserContext())
	if err != nil {
		m.logger.Error("Failed to get stats", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "stats_failed",
			Message: "Failed to get stats",
		})
	}
	return c.JSON(snapshot)
}

// handleWebSocket handles WebSocket connections at /ws. Each connection is
// read by this goroutine and written by its client's WritePump.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	clientID := uuid.New().String()
	ctx := context.Background()

	client := broadcast.NewClient(clientID, c, m.clientCfg.SendBuffer)
	m.hub.Register(client)

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		client.WritePump(m.clientCfg)
	}()

	session := m.sessions.Open(clientID)
	m.logger.Debug("WebSocket client connected", "clientID", clientID)

	defer func() {
		m.sessions.Disconnect(ctx, session)
		m.hub.Unregister(client)
		// The connection is released when this handler returns.
		<-pumpDone
		m.logger.Debug("WebSocket client disconnected", "clientID", clientID)
	}()

	c.SetReadLimit(m.cfg.MaxMessageBytes)
	_ = c.SetReadDeadline(time.Now().Add(m.cfg.PongWait))
	c.SetPongHandler(func(string) error {
		return c.SetReadDeadline(time.Now().Add(m.cfg.PongWait))
	})

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.logger.Warn("WebSocket read error", "clientID", clientID, "error", err)
			}
			return
		}

		in, err := relay.DecodeInbound(data)
		if err != nil {
			m.logger.Debug("Dropped frame", "clientID", clientID, "error", err)
			continue
		}
		if err := m.sessions.Handle(ctx, session, in); err != nil {
			m.logger.Debug("Dropped event",
				"clientID", clientID,
				"type", in.Type,
				"error", err)
		}
	}
}
