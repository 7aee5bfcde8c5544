package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rewired-gh/covidboard/internal/app"
	"github.com/rewired-gh/covidboard/internal/config"
	"github.com/rewired-gh/covidboard/internal/dashboard"
	"github.com/rewired-gh/covidboard/internal/logger"
	"github.com/rewired-gh/covidboard/internal/warmup"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	pipe, err := app.NewPipeline(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize pipeline: %v", err)
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	warmer := warmup.New(pipe, cfg.Cache.WarmInterval, cfg.OWID.Timeout*2)
	go func() {
		if err := warmer.Start(ctx); err != nil {
			logger.Error("Cache warm-up failed to start: %v", err)
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      dashboard.New(pipe).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown: %v", err)
		}
	}()

	logger.Info("Dashboard listening on %s (source: %s, default entity: %s, cache ttl: %v)",
		cfg.Server.ListenAddr, cfg.Pipeline.DefaultSource, cfg.Pipeline.DefaultEntity, cfg.Cache.TTL)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("HTTP server failed: %v", err)
	}
	logger.Info("Service stopped")
}
