package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"gamechar/internal/adapter/repo"
	"gamechar/internal/domain/stylecfg"
	"gamechar/internal/http/handlers"
	httpapi "gamechar/internal/http/httpapi"
	"gamechar/internal/infra"
	"gamechar/internal/infra/credentials"
	"gamechar/internal/infra/geoip"
	"gamechar/internal/pipeline"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)
	ctx := context.Background()

	// Optional job store: mirrors job metadata and fills missing credentials.
	var store pipeline.Store = pipeline.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()

		runner := infra.NewSQLRunner(dbpool, logger)
		jobs := repo.NewJobRepository(runner)
		if err := jobs.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure schema")
		}
		if err := credentials.NewStore(runner).Fill(ctx, cfg); err != nil {
			logger.Warn().Err(err).Msg("failed to load stored credentials")
		}
		store = pipeline.NewRepositoryStore(jobs, &logger)
	}
	if err := cfg.RequireProviders(); err != nil {
		logger.Fatal().Err(err).Msg("missing provider credentials")
	}

	catalog, err := stylecfg.Load(cfg.StyleCatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load style catalog")
	}

	opts, err := buildPipeline(cfg, catalog, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure providers")
	}
	opts.Store = store
	ctrl, err := pipeline.NewController(opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build pipeline")
	}
	if job, err := ctrl.Recover(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to recover previous job")
	} else if job != nil {
		logger.Info().Str("job_id", job.ID.String()).Str("phase", string(job.Phase)).Msg("previous job recovered")
	}
	caps := ctrl.Capabilities()
	logger.Info().Bool("email", caps.Email).Bool("drive", caps.Drive).Strs("styles", styleNames(catalog)).Msg("pipeline ready")

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath, 0)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	if closer, ok := resolver.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	app := handlers.NewApp(ctrl, &logger, cfg.MaxUploadBytes)
	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		DefaultLocale:   cfg.DefaultLocale,
		CountryLookup:   geoip.Lookup(resolver),
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on %s", server.Addr())
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout+cfg.RevokeTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("pipeline run did not finish before shutdown")
	}
	logger.Info().Msg("server stopped")
}
