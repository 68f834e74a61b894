package api

import (
	"context"
	"fmt"
	"time"

	"github.com/example/signaling-relay/config"
	"github.com/example/signaling-relay/modules/broadcast"
	"github.com/example/signaling-relay/modules/relay"
	"github.com/example/signaling-relay/modules/stats"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/redis/v3"
)

// SessionHandler runs the relay protocol for WebSocket connections.
type SessionHandler interface {
	Open(connectionID string) *relay.Session
	Handle(ctx context.Context, s *relay.Session, in relay.Inbound) error
	Disconnect(ctx context.Context, s *relay.Session)
}

// APIModule is the HTTP API module with WebSocket support.
type APIModule struct {
	app       *fiber.App
	cfg       *config.Config
	rooms     relay.RoomQueryPort
	stats     stats.StatsPort
	sessions  SessionHandler
	hub       *broadcast.Hub
	clientCfg broadcast.ClientConfig
	storage   fiber.Storage
	logger    types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(cfg *config.Config, logger types.Logger) *APIModule {
	if cfg == nil {
		cfg = config.Default()
	}
	return &APIModule{
		cfg:       cfg,
		clientCfg: broadcast.DefaultClientConfig(),
		logger:    logger,
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"relay", "stats"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "relay":
		m.rooms = relay.NewRoomQueryAdapter(container)
	case "stats":
		m.stats = stats.NewStatsAdapter(container)
	}
}

// SetHub sets the broadcast hub and client write settings (called from main.go).
func (m *APIModule) SetHub(hub *broadcast.Hub, clientCfg broadcast.ClientConfig) {
	m.hub = hub
	m.clientCfg = clientCfg
}

// SetSessionHandler sets the relay protocol handler (called from main.go).
func (m *APIModule) SetSessionHandler(h SessionHandler) {
	m.sessions = h
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	if m.rooms == nil {
		return fmt.Errorf("relay adapter dependency not set")
	}
	if m.stats == nil {
		return fmt.Errorf("stats adapter dependency not set")
	}
	if m.hub == nil {
		return fmt.Errorf("broadcast hub dependency not set")
	}
	if m.sessions == nil {
		return fmt.Errorf("session handler dependency not set")
	}

	if m.cfg.RedisAddr != "" {
		host, port, err := config.SplitRedisAddr(m.cfg.RedisAddr)
		if err != nil {
			return err
		}
		m.storage = redis.New(redis.Config{
			Host:     host,
			Port:     port,
			Password: m.cfg.RedisPassword,
		})
		m.logger.Info("Connection limiter using Redis", "addr", m.cfg.RedisAddr)
	}

	m.app = m.newApp()

	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(":" + m.cfg.Port); err != nil {
			errCh <- err
		}
	}()

	// Wait briefly to catch immediate startup errors
	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	m.logger.Info("HTTP server started", "port", m.cfg.Port)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(ctx context.Context) error {
	if m.app != nil {
		m.logger.Info("Shutting down HTTP server")
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	if m.storage != nil {
		if err := m.storage.Close(); err != nil {
			m.logger.Warn("Failed to close limiter storage", "error", err)
		}
	}
	return nil
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{
		"port": m.cfg.Port,
	}
	if m.hub != nil {
		details["connected_clients"] = m.hub.ClientCount()
	}
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: details,
	}
}

// newApp builds the Fiber application with middleware and routes.
func (m *APIModule) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
		Next: func(c *fiber.Ctx) bool {
			return c.Get(fiber.HeaderUpgrade) == "websocket"
		},
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: m.cfg.AllowedOrigins,
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Content-Type",
	}))

	m.setupRoutes(app)
	return app
}

// errorHandler handles Fiber errors.
func (m *APIModule) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	if code >= fiber.StatusInternalServerError {
		m.logger.Error("HTTP error", "code", code, "path", c.Path(), "error", err)
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
