// Package config loads relay settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the runtime settings of the relay.
type Config struct {
	Port            string
	AllowedOrigins  string
	ShutdownTimeout time.Duration
	DefaultRoom     string

	RedisAddr     string
	RedisPassword string

	// Connection attempts per client IP allowed in ConnectWindow.
	ConnectLimit  int
	ConnectWindow time.Duration

	PingInterval    time.Duration
	PongWait        time.Duration
	WriteWait       time.Duration
	SendBuffer      int
	MaxMessageBytes int64
}

// Default returns the configuration used when no variables are set.
func Default() *Config {
	return &Config{
		Port:            "3000",
		AllowedOrigins:  "*",
		ShutdownTimeout: 30 * time.Second,
		DefaultRoom:     "default",
		ConnectLimit:    30,
		ConnectWindow:   time.Minute,
		PingInterval:    54 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		SendBuffer:      256,
		MaxMessageBytes: 64 * 1024,
	}
}

// Load reads the configuration from environment variables. Invalid values
// keep their defaults and are reported in the returned error, which callers
// may log and ignore.
func Load() (*Config, error) {
	cfg := Default()
	var errs []error

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.AllowedOrigins = getEnv("CORS_ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.DefaultRoom = getEnv("DEFAULT_ROOM", cfg.DefaultRoom)
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout, &errs)
	cfg.ConnectLimit = getEnvInt("WS_CONNECT_LIMIT", cfg.ConnectLimit, &errs)
	cfg.ConnectWindow = getEnvDuration("WS_CONNECT_WINDOW", cfg.ConnectWindow, &errs)
	cfg.PingInterval = getEnvDuration("WS_PING_INTERVAL", cfg.PingInterval, &errs)
	cfg.PongWait = getEnvDuration("WS_PONG_WAIT", cfg.PongWait, &errs)
	cfg.WriteWait = getEnvDuration("WS_WRITE_WAIT", cfg.WriteWait, &errs)
	cfg.SendBuffer = getEnvInt("WS_SEND_BUFFER", cfg.SendBuffer, &errs)
	cfg.MaxMessageBytes = int64(getEnvInt("WS_MAX_MESSAGE_BYTES", int(cfg.MaxMessageBytes), &errs))

	if cfg.PingInterval >= cfg.PongWait {
		errs = append(errs, fmt.Errorf("WS_PING_INTERVAL (%s) must be shorter than WS_PONG_WAIT (%s)", cfg.PingInterval, cfg.PongWait))
		cfg.PingInterval = cfg.PongWait * 9 / 10
	}
	if cfg.RedisAddr != "" {
		if _, _, err := SplitRedisAddr(cfg.RedisAddr); err != nil {
			errs = append(errs, err)
			cfg.RedisAddr = ""
		}
	}

	return cfg, errors.Join(errs...)
}

// SplitRedisAddr parses a host:port Redis address.
func SplitRedisAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid REDIS_ADDR %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid REDIS_ADDR port %q", portStr)
	}
	if host == "" {
		host = "localhost"
	}
	return host, port, nil
}

// getEnv returns environment variable or default.
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns a positive int from the environment or default.
func getEnvInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil || intVal <= 0 {
		*errs = append(*errs, fmt.Errorf("invalid int value for %s: %q, using default: %d", key, value, defaultValue))
		return defaultValue
	}
	return intVal
}

// getEnvDuration returns a positive duration from the environment or default.
func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil || duration <= 0 {
		*errs = append(*errs, fmt.Errorf("invalid duration value for %s: %q, using default: %s", key, value, defaultValue))
		return defaultValue
	}
	return duration
}
