package main

import (
	"context"
	"log"
	"os"

	"github.com/example/signaling-relay/config"
	"github.com/example/signaling-relay/modules/api"
	"github.com/example/signaling-relay/modules/broadcast"
	"github.com/example/signaling-relay/modules/relay"
	"github.com/example/signaling-relay/modules/stats"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	log.Println("=== Signaling Relay - Fiber WebSocket + EventBus ===")

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Configuration warnings: %v", err)
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	// Create modules
	broadcastModule := broadcast.NewModule(broadcast.ClientConfig{
		SendBuffer:   cfg.SendBuffer,
		PingInterval: cfg.PingInterval,
		WriteWait:    cfg.WriteWait,
	}, logger.WithModule("broadcast"))
	relayModule := relay.NewModule(broadcastModule.GetHub(), cfg.DefaultRoom, logger.WithModule("relay"))
	statsModule := stats.NewModule(logger.WithModule("stats"))
	apiModule := api.NewModule(cfg, logger.WithModule("api"))

	// The hub and protocol handler are not exposed via ServiceContainer.
	apiModule.SetHub(broadcastModule.GetHub(), broadcastModule.ClientConfig())
	apiModule.SetSessionHandler(relayModule.Handler())

	// Order: independent modules first, then modules with dependencies
	// - broadcast: WebSocket hub and per-client write pumps
	// - relay: room state, protocol handler, lifecycle events, room queries
	// - stats: lifecycle event consumer
	// - api: Fiber HTTP/WebSocket server, depends on relay and stats
	for _, m := range []mono.Module{broadcastModule, relayModule, statsModule, apiModule} {
		if err := app.Register(m); err != nil {
			log.Fatalf("Failed to register %s module: %v", m.Name(), err)
		}
	}

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg *config.Config) {
	limiterStore := "memory"
	if cfg.RedisAddr != "" {
		limiterStore = "redis " + cfg.RedisAddr
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", cfg.Port)
	log.Println("  GET    /health              - Health check")
	log.Println("  GET    /api/v1/rooms        - List live rooms")
	log.Println("  GET    /api/v1/rooms/:id    - Room members and cached actions")
	log.Println("  GET    /api/v1/stats        - Relay counters")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", cfg.Port)
	log.Println("  Frames: {\"type\": \"...\", \"payload\": {...}}")
	log.Println("  Client events: join, offer, answer, ice, action")
	log.Printf("  Default room: %s", cfg.DefaultRoom)
	log.Printf("  Connection limit: %d per %s (%s)", cfg.ConnectLimit, cfg.ConnectWindow, limiterStore)
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
