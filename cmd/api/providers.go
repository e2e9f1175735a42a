package main

import (
	"fmt"
	"net/http"
	"time"

	"gamechar/internal/composite"
	"gamechar/internal/delivery"
	"gamechar/internal/domain"
	"gamechar/internal/infra"
	"gamechar/internal/pipeline"
	"gamechar/internal/providers/staging"
	"gamechar/internal/providers/synth"
	"gamechar/internal/providers/vision"
	"gamechar/internal/storage"
)

// buildPipeline constructs every provider named by cfg. Delivery channels
// without credentials stay nil and are reported as unavailable.
func buildPipeline(cfg *infra.Config, catalog *domain.StyleCatalog, logger *infra.Logger) (pipeline.Options, error) {
	httpClient := &http.Client{Timeout: 3 * time.Minute}

	stager, err := staging.NewClient(staging.Options{
		APIKey:     cfg.ImgBBAPIKey,
		BaseURL:    cfg.ImgBBBaseURL,
		Expiration: cfg.ImgBBExpiration,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("staging: %w", err)
	}

	var analyzer vision.Analyzer
	switch cfg.VisionProvider {
	case "gemini":
		analyzer, err = vision.NewGeminiAnalyzer(vision.GeminiOptions{
			APIKey:     cfg.GeminiAPIKey,
			Model:      cfg.GeminiModel,
			BaseURL:    cfg.GeminiBaseURL,
			HTTPClient: httpClient,
			Logger:     logger,
		})
	default:
		analyzer, err = vision.NewOpenAIAnalyzer(vision.OpenAIOptions{
			APIKey:       cfg.OpenAIAPIKey,
			Model:        cfg.OpenAIVisionModel,
			BaseURL:      cfg.OpenAIBaseURL,
			Organization: cfg.OpenAIOrg,
			Inline:       cfg.OpenAIVisionInline,
			HTTPClient:   httpClient,
			Logger:       logger,
		})
	}
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("vision: %w", err)
	}

	synthesizer, err := synth.NewClient(synth.Options{
		APIKey:       cfg.OpenAIAPIKey,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
		Model:        cfg.OpenAIImageModel,
		Size:         cfg.ImageSize,
		Quality:      cfg.ImageQuality,
		Catalog:      catalog,
		HTTPClient:   httpClient,
		Logger:       logger,
	})
	if err != nil {
		return pipeline.Options{}, fmt.Errorf("synthesis: %w", err)
	}

	compositor := composite.New(composite.Options{
		HTTPClient: httpClient,
		OffsetX:    cfg.WatermarkOffsetX,
		OffsetY:    cfg.WatermarkOffsetY,
		CacheTTL:   cfg.WatermarkCacheTTL,
		Logger:     logger,
	})

	opts := pipeline.Options{
		Stager:       stager,
		Analyzer:     analyzer,
		Synthesizer:  synthesizer,
		Compositor:   compositor,
		Catalog:      catalog,
		WatermarkURL: cfg.WatermarkURL,
		PreviewSize:  cfg.PreviewMaxSize,
		Timeouts: pipeline.Timeouts{
			Staging:     cfg.StagingTimeout,
			Analysis:    cfg.AnalysisTimeout,
			Synthesis:   cfg.SynthesisTimeout,
			Composition: cfg.CompositionTimeout,
			Delivery:    cfg.DeliveryTimeout,
			Revoke:      cfg.RevokeTimeout,
		},
		Logger: logger,
	}

	if cfg.EmailEnabled() {
		opts.Emailer, err = buildEmailer(cfg, httpClient, logger)
		if err != nil {
			return pipeline.Options{}, fmt.Errorf("email: %w", err)
		}
	} else {
		logger.Warn().Str("provider", cfg.EmailProvider).Msg("email delivery disabled: credentials missing")
	}

	if cfg.DriveEnabled() {
		spool, err := storage.NewSpool(cfg.SpoolDir)
		if err != nil {
			return pipeline.Options{}, err
		}
		opts.Drive, err = buildDrive(cfg, spool, logger)
		if err != nil {
			return pipeline.Options{}, fmt.Errorf("drive: %w", err)
		}
	} else {
		logger.Warn().Str("provider", cfg.DriveProvider).Msg("drive delivery disabled: credentials missing")
	}

	return opts, nil
}

func buildEmailer(cfg *infra.Config, httpClient *http.Client, logger *infra.Logger) (delivery.Emailer, error) {
	if cfg.EmailProvider == "mailersend" {
		return delivery.NewMailerSendMailer(delivery.MailerSendOptions{
			APIKey:     cfg.MailerSendAPIKey,
			FromName:   cfg.EmailFromName,
			FromAddr:   cfg.EmailFromAddress,
			HTTPClient: httpClient,
			Logger:     logger,
		})
	}
	return delivery.NewSMTPMailer(delivery.SMTPOptions{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		FromName: cfg.EmailFromName,
		FromAddr: cfg.EmailFromAddress,
		Timeout:  cfg.DeliveryTimeout,
		Logger:   logger,
	})
}

func buildDrive(cfg *infra.Config, spool *storage.Spool, logger *infra.Logger) (delivery.Drive, error) {
	if cfg.DriveProvider == "azure" {
		return delivery.NewAzureDrive(delivery.AzureOptions{
			ConnectionString: cfg.AzureConnectionString,
			Folder:           cfg.DriveFolder,
			Spool:            spool,
			Logger:           logger,
		})
	}
	return delivery.NewMinioDrive(delivery.MinioOptions{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		UseSSL:    cfg.MinioUseSSL,
		Region:    cfg.MinioRegion,
		Folder:    cfg.DriveFolder,
		Spool:     spool,
		Logger:    logger,
	})
}

func styleNames(catalog *domain.StyleCatalog) []string {
	list := catalog.List()
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, string(s.Style))
	}
	return out
}
