// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package main is the entry point for the email content workbench server.
// It loads configuration, wires the generation services, sets up routing,
// and starts the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"emailstudio/internal/ai"
	"emailstudio/internal/batch"
	"emailstudio/internal/config"
	"emailstudio/internal/engine"
	"emailstudio/internal/esp"
	"emailstudio/internal/handlers"
	"emailstudio/internal/imaging"
	"emailstudio/internal/router"
	"emailstudio/internal/storage"
)

func main() {
	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Structured logger for everything downstream; debug level only in
	// development.
	level := slog.LevelInfo
	if cfg.IsDev() {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"engine_enabled", cfg.EngineEnabled,
	)

	// libvips powers hero normalization; it needs explicit lifecycle calls.
	imaging.Startup(runtime.NumCPU())
	defer imaging.Shutdown()

	// Connect to S3-compatible object storage (optional — the app starts
	// without it, but generation requests will fail until it is set).
	var store storage.Store
	s3Client, err := storage.New(storage.Options{
		Endpoint:   cfg.S3Endpoint,
		Region:     cfg.S3Region,
		AccessKey:  cfg.S3AccessKey,
		SecretKey:  cfg.S3SecretKey,
		Bucket:     cfg.S3Bucket,
		Prefix:     cfg.StoragePrefix,
		PublicRead: cfg.PublicRead,
		URLStyle:   cfg.URLStyle,
		ConsoleURL: cfg.ConsoleURL,
	})
	if err != nil {
		slog.Error("failed to initialize object storage", "error", err)
		os.Exit(1)
	}
	if s3Client != nil {
		store = s3Client
		slog.Info("object storage connected",
			"endpoint", cfg.S3Endpoint,
			"bucket", cfg.S3Bucket,
			"prefix", cfg.StoragePrefix,
		)
	} else {
		slog.Warn("object storage not configured — batch persistence disabled")
	}

	// Text-generation engine client and its metadata cache.
	engineClient := engine.New(cfg.EngineBaseURL, cfg.EngineEnabled)
	metaCache := engine.NewMetaCache(engineClient)
	if !engineClient.Enabled() {
		slog.Warn("text engine disabled — generation will return empty content")
	}

	// Hero image generation. Without an API key every hero falls back to
	// the deterministic banner, which keeps local development working.
	imageClient := ai.NewImageClient(cfg.ImageAPIKey, cfg.ImageBaseURL, cfg.ImageModel, cfg.ImageSize, cfg.ImageQuality)
	if cfg.ImageAPIKey == "" {
		slog.Warn("image provider not configured — heroes will use fallback banners")
	}

	// Batch orchestrator.
	batches := batch.NewService(store, imageClient, engineClient, cfg.Env)

	// ESP publishing (optional).
	espClient := esp.NewClient(cfg.ESPAuthURL, cfg.ESPClientID, cfg.ESPClientSecret, cfg.ESPAccountID, cfg.ESPCategoryID)
	publisher := esp.NewPublisher(espClient, store)
	if espClient == nil {
		slog.Warn("esp not configured — draft publishing disabled")
	}

	api := &handlers.API{
		Batches:   batches,
		Meta:      metaCache,
		Publisher: publisher,
		Store:     store,
	}

	// Set up the Chi router with middleware and routes.
	r := router.New(api, cfg.AllowedOrigins)

	// WriteTimeout must accommodate a full generation: up to five image
	// renders plus the text engine call.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start the server in a goroutine so we can listen for shutdown signals.
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown: wait for SIGINT or SIGTERM, then drain connections.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	// Give active generation requests time to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
