package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"gamechar/internal/adapter/repo"
	"gamechar/internal/infra"
	"gamechar/internal/infra/credentials"
)

// envKeys names the variable each provider's secret is read from when -key
// is omitted.
var envKeys = map[string]string{
	credentials.ProviderImgBB:      "IMGBB_API_KEY",
	credentials.ProviderOpenAI:     "OPENAI_API_KEY",
	credentials.ProviderGemini:     "GEMINI_API_KEY",
	credentials.ProviderSMTP:       "SMTP_PASSWORD",
	credentials.ProviderMailerSend: "MAILERSEND_API_KEY",
	credentials.ProviderMinio:      "MINIO_SECRET_KEY",
	credentials.ProviderAzure:      "AZURE_STORAGE_CONNECTION_STRING",
}

type propsFlag map[string]any

func (p propsFlag) String() string { return fmt.Sprint(map[string]any(p)) }

func (p propsFlag) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(k) == "" {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	p[strings.TrimSpace(k)] = strings.TrimSpace(val)
	return nil
}

func main() {
	_ = godotenv.Load()

	var (
		keyFlag      string
		providerFlag string
		props        = propsFlag{}
	)
	flag.StringVar(&keyFlag, "key", "", "secret for the selected provider (falls back to environment)")
	flag.StringVar(&providerFlag, "provider", credentials.ProviderImgBB,
		"provider to configure: "+strings.Join(credentials.Providers, ", "))
	flag.Var(props, "prop", "non-secret setting stored alongside the key, as key=value (repeatable)")
	flag.Parse()

	provider := strings.TrimSpace(strings.ToLower(providerFlag))
	envKey, ok := envKeys[provider]
	if !ok {
		fmt.Fprintf(os.Stderr, "unsupported provider %q\n", providerFlag)
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(envKey))
	}
	if key == "" {
		fmt.Fprintf(os.Stderr, "%s secret is required via -key or %s\n", provider, envKey)
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "setkey").Str("provider", provider).Logger()
	runner := infra.NewSQLRunner(pool, logger)
	if err := repo.NewJobRepository(runner).EnsureSchema(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to ensure schema: %v\n", err)
		os.Exit(1)
	}

	if err := credentials.NewStore(runner).Set(ctx, provider, key, props); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist %s secret: %v\n", provider, err)
		os.Exit(1)
	}

	fmt.Printf("%s secret stored successfully\n", provider)
}
