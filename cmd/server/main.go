package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/facturaIA/receipt-reconciler/api"
	"github.com/facturaIA/receipt-reconciler/internal/ai"
	"github.com/facturaIA/receipt-reconciler/internal/auth"
	"github.com/facturaIA/receipt-reconciler/internal/config"
	"github.com/facturaIA/receipt-reconciler/internal/db"
	"github.com/facturaIA/receipt-reconciler/internal/logger"
	"github.com/facturaIA/receipt-reconciler/internal/pipeline"
	"github.com/facturaIA/receipt-reconciler/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
	log := logger.WithComponent("server")

	auth.Init(os.Getenv("JWT_SECRET"))
	if !auth.Enabled() {
		log.Warn().Msg("JWT_SECRET not set, /api is open")
	}

	// Audit sinks are optional
	if err := db.Init(); err != nil {
		if !errors.Is(err, db.ErrNotConfigured) {
			log.Warn().Err(err).Msg("database not available, running without audit log")
		}
	} else {
		defer db.Close()
	}
	if err := storage.Init(); err != nil && !errors.Is(err, storage.ErrNotConfigured) {
		log.Warn().Err(err).Msg("object storage not available, runs will not be archived")
	}

	var remote pipeline.RemoteInferrer
	providerName := ""
	provider, err := ai.NewProvider(cfg.AI)
	switch {
	case err == nil:
		extractor := ai.NewRemoteExtractor(provider, cfg.AI)
		remote = extractor
		providerName = extractor.Provider()
	case errors.Is(err, ai.ErrProviderDisabled):
		log.Info().Msg("remote inference disabled, local parser only")
	default:
		log.Warn().Err(err).Msg("remote provider unavailable, local parser only")
	}

	orchestrator := pipeline.NewOrchestrator(pipeline.NewAnalyzer(remote))
	handler := api.NewHandler(cfg, orchestrator, providerName)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		// remote inference can take up to the AI timeout
		WriteTimeout: cfg.AI.Timeout + 30*time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().
			Str("addr", addr).
			Str("version", api.Version).
			Str("provider", providerName).
			Bool("database", db.Available()).
			Bool("storage", storage.Available()).
			Bool("auth", auth.Enabled()).
			Msg("starting receipt reconciliation service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
