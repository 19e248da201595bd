// Package main is the entry point for the multi-specialist financial
// research orchestrator. It loads configuration, wires every
// collaborator via internal/di, starts the HTTP server, and waits for
// an interrupt to shut down gracefully.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finresearch/orchestrator/internal/config"
	"github.com/finresearch/orchestrator/internal/di"
	"github.com/finresearch/orchestrator/pkg/logger"
)

func main() {
	// Load configuration first so the logger can pick up its level.
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)

	log.Info().Msg("starting orchestrator")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire every collaborator: store, cache, provider clients, the agent
	// graph, the report orchestrator, trade controls, and the HTTP server.
	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire dependencies")
	}

	go func() {
		if err := container.Server.Start(); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	log.Info().Str("port", cfg.HTTPPort).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := container.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}

	log.Info().Msg("stopped")
}
