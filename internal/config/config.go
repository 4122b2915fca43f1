package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	// AppURL is the public URL of the deployment; its origin is the one
	// browser origin allowed to open WebSockets.
	AppURL      string `env:"APP_URL"`
	RedisURL    string `env:"REDIS_URL"`
	ChatChannel string `env:"CHAT_CHANNEL" default:"chat:messages"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	// SendTimeout bounds a single per-peer WebSocket write during fan-out.
	SendTimeout time.Duration `env:"SEND_TIMEOUT" default:"250ms"`
	// ShutdownTimeout bounds draining all live connections on shutdown.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"2s"`

	// PingInterval is how often each connection is pinged; PongTimeout is
	// how long a peer may go without answering before it is disconnected.
	PingInterval time.Duration `env:"PING_INTERVAL" default:"25s"`
	PongTimeout  time.Duration `env:"PONG_TIMEOUT" default:"60s"`

	HistoryStream string `env:"HISTORY_STREAM" default:"chat:history"`
	HistoryLimit  int    `env:"HISTORY_LIMIT" default:"100"`

	MaxConnections int     `env:"MAX_CONNECTIONS" default:"10000"`
	MessageRate    float64 `env:"MESSAGE_RATE" default:"10"`
	MessageBurst   int     `env:"MESSAGE_BURST" default:"20"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if cfg.ChatChannel == "" {
		return fmt.Errorf("CHAT_CHANNEL must not be empty")
	}
	if cfg.SendTimeout <= 0 {
		return fmt.Errorf("SEND_TIMEOUT must be positive, got %v", cfg.SendTimeout)
	}
	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %v", cfg.ShutdownTimeout)
	}
	if cfg.PingInterval <= 0 {
		return fmt.Errorf("PING_INTERVAL must be positive, got %v", cfg.PingInterval)
	}
	if cfg.PongTimeout <= cfg.PingInterval {
		return fmt.Errorf("PONG_TIMEOUT (%v) must exceed PING_INTERVAL (%v)", cfg.PongTimeout, cfg.PingInterval)
	}
	if cfg.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive, got %d", cfg.HistoryLimit)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("MAX_CONNECTIONS must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.MessageRate <= 0 || cfg.MessageBurst <= 0 {
		return fmt.Errorf("MESSAGE_RATE and MESSAGE_BURST must be positive")
	}
	return nil
}
