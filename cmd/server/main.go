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

	"github.com/taskflow/realtime/internal/broadcast"
	"github.com/taskflow/realtime/internal/config"
	"github.com/taskflow/realtime/internal/logging"
	"github.com/taskflow/realtime/internal/relay"
	"github.com/taskflow/realtime/internal/server"
	"github.com/taskflow/realtime/internal/sse"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupRelay(ctx context.Context, cfg *config.Config, broadcaster *broadcast.Broadcaster) *relay.Relay {
	r, err := relay.New(ctx, cfg.RedisURL, broadcaster)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return r
}

func runGracefulShutdown(srv *server.Server, heartbeat *broadcast.HeartbeatScheduler, registry *sse.Registry, r *relay.Relay, cancelRelay context.CancelFunc) <-chan struct{} {
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

		heartbeat.Stop()
		registry.CloseAll()

		if r != nil {
			cancelRelay()
			if err := r.Close(); err != nil {
				slog.Error("Relay shutdown error", "error", err)
			}
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	registry := sse.NewRegistry(clock, cfg.SendBufferSize)
	broadcaster := broadcast.NewBroadcaster(registry)

	// The relay is optional; a single instance runs without Redis.
	relayCtx, cancelRelay := context.WithCancel(context.Background())
	defer cancelRelay()

	var r *relay.Relay
	if cfg.RedisURL != "" {
		r = setupRelay(relayCtx, cfg, broadcaster)
		broadcaster.UseForwarder(r)
		go func() {
			if err := r.Run(relayCtx); err != nil {
				slog.Error("Relay subscription ended", "error", err)
			}
		}()
	}

	heartbeat := broadcast.NewHeartbeatScheduler(broadcaster, registry, clock, cfg.HeartbeatInterval)

	// Pass nil explicitly to avoid a typed-nil interface
	var srv *server.Server
	if r != nil {
		srv = server.NewServer(cfg, registry, broadcaster, r)
	} else {
		srv = server.NewServer(cfg, registry, broadcaster, nil)
	}

	done := runGracefulShutdown(srv, heartbeat, registry, r, cancelRelay)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
