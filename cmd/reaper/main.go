package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"gamechar/internal/adapter/repo"
	"gamechar/internal/infra"
	"gamechar/internal/infra/credentials"
	"gamechar/internal/pipeline"
	"gamechar/internal/providers/staging"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "reaper").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("reaper: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	if cfg.ImgBBAPIKey == "" {
		if err := credentials.NewStore(runner).Fill(ctx, cfg); err != nil {
			logger.Warn().Err(err).Msg("reaper: failed to load stored credentials")
		}
	}

	stager, err := staging.NewClient(staging.Options{
		APIKey:     cfg.ImgBBAPIKey,
		BaseURL:    cfg.ImgBBBaseURL,
		HTTPClient: &http.Client{Timeout: cfg.RevokeTimeout + 5*time.Second},
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("reaper: failed to configure staging client")
	}

	jobs := repo.NewJobRepository(runner)
	if err := jobs.EnsureSchema(ctx); err != nil {
		logger.Fatal().Err(err).Msg("reaper: failed to ensure schema")
	}

	// A live API process saves the job after every step; anything untouched
	// for longer than a full run is abandoned.
	opts := pipeline.ReapOptions{
		MinAge: cfg.StagingTimeout + cfg.AnalysisTimeout + cfg.SynthesisTimeout +
			cfg.CompositionTimeout + cfg.RevokeTimeout,
		Batch:         cfg.ReaperBatch,
		RevokeTimeout: cfg.RevokeTimeout,
		Logger:        &logger,
	}

	sweep := func() {
		report, err := pipeline.Reap(ctx, jobs, stager, opts)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("reaper: sweep failed")
			return
		}
		logger.Info().
			Int("scanned", report.Scanned).
			Int("revoked", report.Revoked).
			Int("failed", report.Failed).
			Int("interrupted", report.Interrupted).
			Msg("reaper: sweep finished")
	}

	sweep()
	if cfg.ReaperInterval <= 0 {
		return
	}

	ticker := time.NewTicker(cfg.ReaperInterval)
	defer ticker.Stop()
	logger.Info().Dur("interval", cfg.ReaperInterval).Msg("reaper: started")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("reaper: stopped")
			return
		case <-ticker.C:
			sweep()
		}
	}
}
