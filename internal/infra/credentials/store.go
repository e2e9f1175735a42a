package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gamechar/internal/infra"
	"gamechar/internal/sqlinline"
)

// Provider names as stored in integration_tokens.provider.
const (
	ProviderImgBB      = "imgbb"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderSMTP       = "smtp"
	ProviderMailerSend = "mailersend"
	ProviderMinio      = "minio"
	ProviderAzure      = "azure"
)

// Providers lists every provider the store accepts.
var Providers = []string{
	ProviderImgBB,
	ProviderOpenAI,
	ProviderGemini,
	ProviderSMTP,
	ProviderMailerSend,
	ProviderMinio,
	ProviderAzure,
}

// ErrUnknownProvider is returned for provider names outside Providers.
var ErrUnknownProvider = errors.New("unknown provider")

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored secret for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider)
	var token string
	if err := row.Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(token), nil
}

// Set stores a secret for provider. props carries non-secret settings such as
// a username or endpoint.
func (s *Store) Set(ctx context.Context, provider, token string, props map[string]any) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if !known(provider) {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("%s token is required", provider)
	}
	return s.upsert(ctx, provider, token, props)
}

// Fill completes credentials missing from cfg with stored tokens. Values
// already present in the environment win.
func (s *Store) Fill(ctx context.Context, cfg *infra.Config) error {
	targets := []struct {
		provider string
		dst      *string
	}{
		{ProviderImgBB, &cfg.ImgBBAPIKey},
		{ProviderOpenAI, &cfg.OpenAIAPIKey},
		{ProviderGemini, &cfg.GeminiAPIKey},
		{ProviderSMTP, &cfg.SMTPPassword},
		{ProviderMailerSend, &cfg.MailerSendAPIKey},
		{ProviderMinio, &cfg.MinioSecretKey},
		{ProviderAzure, &cfg.AzureConnectionString},
	}
	for _, t := range targets {
		if *t.dst != "" {
			continue
		}
		token, err := s.Token(ctx, t.provider)
		if err != nil {
			return fmt.Errorf("credentials: load %s: %w", t.provider, err)
		}
		*t.dst = token
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, provider, token string, props map[string]any) error {
	payload := props
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token, raw)
	return err
}

func known(provider string) bool {
	for _, p := range Providers {
		if p == provider {
			return true
		}
	}
	return false
}
