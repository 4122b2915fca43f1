package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/hhoikoo/multiuser-webchat/internal/bus"
	"github.com/hhoikoo/multiuser-webchat/internal/config"
	"github.com/hhoikoo/multiuser-webchat/internal/logging"
	"github.com/hhoikoo/multiuser-webchat/internal/redis"
	"github.com/hhoikoo/multiuser-webchat/internal/router"
	"github.com/hhoikoo/multiuser-webchat/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupBus(cfg *config.Config) *bus.Bus {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	b := bus.New(cfg.RedisURL, cfg.ChatChannel)
	if err := b.Connect(ctx); err != nil {
		slog.Error("Failed to connect broadcast bus", "error", err)
		os.Exit(1)
	}
	return b
}

func runGracefulShutdown(srv *server.Server, rtr *router.Router, b *bus.Bus) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		rtr.CloseAll()
		b.Disconnect()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "channel", cfg.ChatChannel)

	b := setupBus(cfg)

	// Separate client for the history store and health checks; the bus owns
	// its own connection lifecycle.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	cancel()
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	history := bus.NewHistory(redisClient, cfg.HistoryStream, int64(cfg.HistoryLimit))

	rtr := router.New(b, history, clock, cfg.SendTimeout, cfg.ShutdownTimeout)

	b.SetMessageHandler(rtr.OnBusMessage)
	if err := b.StartListen(); err != nil {
		slog.Error("Failed to start bus listener", "error", err)
		os.Exit(1)
	}

	srv := server.NewServer(cfg, rtr, history, redisClient)

	done := runGracefulShutdown(srv, rtr, b)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
