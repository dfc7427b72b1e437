package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mossy-p/webrtc-relay/config"
	"github.com/mossy-p/webrtc-relay/internal/handlers"
	"github.com/mossy-p/webrtc-relay/internal/middleware"
	"github.com/mossy-p/webrtc-relay/internal/redis"
	"github.com/mossy-p/webrtc-relay/internal/registry"
	"github.com/mossy-p/webrtc-relay/internal/relay"
)

const adminTokenTTL = 24 * time.Hour

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// `signaling token <operator>` prints an admin API token and exits
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := printToken(cfg, os.Args[2:]); err != nil {
			log.Fatal(err)
		}
		return
	}

	logger := config.NewLogger(cfg.Log)
	if err := run(cfg, logger); err != nil {
		logger.Error("signaling server failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []relay.Option
	var presence *redis.Presence
	if cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer client.Close()

		presence = redis.NewPresence(client, cfg.Redis.PresenceTTL, logger)
		if err := presence.Reset(ctx); err != nil {
			logger.Warn("failed to clear stale presence", "err", err)
		}
		opts = append(opts, relay.WithPresence(presence))
		logger.Info("redis presence mirror enabled", "addr", cfg.Redis.Addr())
	}

	hub := handlers.NewHub(registry.New(), logger, opts...)
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handlers.NewRouter(cfg, hub, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting signaling server", "port", cfg.Port, "admin", cfg.AdminEnabled())
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server exited: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown failed", "err", err)
		}
		cancel()
	}

	// Hijacked websockets outlive Shutdown; stopping the hub closes them
	stopHub()
	<-hub.Done()
	if presence != nil {
		presence.Close()
	}
	logger.Info("signaling server stopped")
	return serveErr
}

func printToken(cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: signaling token <operator>")
	}
	if !cfg.AdminEnabled() {
		return errors.New("JWT_SECRET must be set to issue admin tokens")
	}
	token, err := middleware.SignToken(cfg.JWTSecret, args[0], adminTokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}
