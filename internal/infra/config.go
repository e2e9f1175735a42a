package infra

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultWatermarkURL is the kiosk logo stamped on every final image.
const DefaultWatermarkURL = "https://github.com/DECK6/gamechar/blob/main/logo.png?raw=true"

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	GeoIPDBPath      string
	DefaultLocale    string
	CORSOrigins      []string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	MaxUploadBytes   int64

	StyleCatalogPath string

	ImgBBAPIKey     string
	ImgBBBaseURL    string
	ImgBBExpiration int

	VisionProvider     string
	OpenAIVisionInline bool
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIOrg          string
	OpenAIVisionModel  string
	OpenAIImageModel   string
	ImageSize          string
	ImageQuality       string
	GeminiAPIKey       string
	GeminiModel        string
	GeminiBaseURL      string

	WatermarkURL      string
	WatermarkOffsetX  int
	WatermarkOffsetY  int
	WatermarkCacheTTL time.Duration
	PreviewMaxSize    int

	StagingTimeout     time.Duration
	AnalysisTimeout    time.Duration
	SynthesisTimeout   time.Duration
	CompositionTimeout time.Duration
	DeliveryTimeout    time.Duration
	RevokeTimeout      time.Duration

	EmailProvider    string
	EmailFromName    string
	EmailFromAddress string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	MailerSendAPIKey string

	DriveProvider         string
	DriveFolder           string
	MinioEndpoint         string
	MinioAccessKey        string
	MinioSecretKey        string
	MinioUseSSL           bool
	MinioRegion           string
	AzureConnectionString string
	SpoolDir              string

	ReaperInterval time.Duration
	ReaperBatch    int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// Provider credentials are checked separately by RequireProviders so they can
// be completed from the credential store first.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:    getEnv("DEFAULT_LOCALE", "ko"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		HTTPReadTimeout:  seconds("HTTP_READ_TIMEOUT_SECONDS", 15),
		HTTPWriteTimeout: seconds("HTTP_WRITE_TIMEOUT_SECONDS", 30),
		HTTPIdleTimeout:  seconds("HTTP_IDLE_TIMEOUT_SECONDS", 60),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		MaxUploadBytes:   int64(getEnvInt("MAX_UPLOAD_MB", 20)) << 20,

		StyleCatalogPath: os.Getenv("STYLE_CATALOG_PATH"),

		ImgBBAPIKey:     os.Getenv("IMGBB_API_KEY"),
		ImgBBBaseURL:    getEnv("IMGBB_BASE_URL", "https://api.imgbb.com/1"),
		ImgBBExpiration: getEnvInt("IMGBB_EXPIRATION_SECONDS", 0),

		VisionProvider:     strings.ToLower(getEnv("VISION_PROVIDER", "openai")),
		OpenAIVisionInline: getEnvBool("OPENAI_VISION_INLINE", false),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:          os.Getenv("OPENAI_ORG"),
		OpenAIVisionModel:  getEnv("OPENAI_VISION_MODEL", "gpt-4o"),
		OpenAIImageModel:   getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),
		ImageSize:          getEnv("OPENAI_IMAGE_SIZE", "1024x1024"),
		ImageQuality:       getEnv("OPENAI_IMAGE_QUALITY", "standard"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),

		WatermarkURL:      getEnv("WATERMARK_URL", DefaultWatermarkURL),
		WatermarkOffsetX:  getEnvInt("WATERMARK_OFFSET_X", 10),
		WatermarkOffsetY:  getEnvInt("WATERMARK_OFFSET_Y", 10),
		WatermarkCacheTTL: seconds("WATERMARK_CACHE_TTL_SECONDS", 3600),
		PreviewMaxSize:    getEnvInt("PREVIEW_MAX_SIZE", 300),

		StagingTimeout:     seconds("STAGING_TIMEOUT_SECONDS", 30),
		AnalysisTimeout:    seconds("ANALYSIS_TIMEOUT_SECONDS", 90),
		SynthesisTimeout:   seconds("SYNTHESIS_TIMEOUT_SECONDS", 120),
		CompositionTimeout: seconds("COMPOSITION_TIMEOUT_SECONDS", 45),
		DeliveryTimeout:    seconds("DELIVERY_TIMEOUT_SECONDS", 60),
		RevokeTimeout:      seconds("REVOKE_TIMEOUT_SECONDS", 15),

		EmailProvider:    strings.ToLower(getEnv("EMAIL_PROVIDER", "smtp")),
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "Game Character Booth"),
		EmailFromAddress: os.Getenv("EMAIL_FROM_ADDRESS"),
		SMTPHost:         getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:         getEnvInt("SMTP_PORT", 465),
		SMTPUsername:     os.Getenv("SMTP_USERNAME"),
		SMTPPassword:     os.Getenv("SMTP_PASSWORD"),
		MailerSendAPIKey: os.Getenv("MAILERSEND_API_KEY"),

		DriveProvider:         strings.ToLower(getEnv("DRIVE_PROVIDER", "minio")),
		DriveFolder:           getEnv("DRIVE_FOLDER", "game-characters"),
		MinioEndpoint:         os.Getenv("MINIO_ENDPOINT"),
		MinioAccessKey:        os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:        os.Getenv("MINIO_SECRET_KEY"),
		MinioUseSSL:           getEnvBool("MINIO_USE_SSL", true),
		MinioRegion:           os.Getenv("MINIO_REGION"),
		AzureConnectionString: os.Getenv("AZURE_STORAGE_CONNECTION_STRING"),
		SpoolDir:              getEnv("SPOOL_DIR", os.TempDir()),

		ReaperInterval: seconds("REAPER_INTERVAL_SECONDS", 0),
		ReaperBatch:    getEnvInt("REAPER_BATCH", 50),
	}

	if cfg.EmailFromAddress == "" {
		cfg.EmailFromAddress = cfg.SMTPUsername
	}

	switch cfg.VisionProvider {
	case "openai", "gemini":
	default:
		return nil, fmt.Errorf("VISION_PROVIDER must be openai or gemini, got %q", cfg.VisionProvider)
	}
	switch cfg.EmailProvider {
	case "smtp", "mailersend":
	default:
		return nil, fmt.Errorf("EMAIL_PROVIDER must be smtp or mailersend, got %q", cfg.EmailProvider)
	}
	switch cfg.DriveProvider {
	case "minio", "azure":
	default:
		return nil, fmt.Errorf("DRIVE_PROVIDER must be minio or azure, got %q", cfg.DriveProvider)
	}

	return cfg, nil
}

// RequireProviders reports missing credentials for the mandatory pipeline providers.
func (c *Config) RequireProviders() error {
	var errs []error
	if c.ImgBBAPIKey == "" {
		errs = append(errs, errors.New("IMGBB_API_KEY is required"))
	}
	if c.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	if c.VisionProvider == "gemini" && c.GeminiAPIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required when VISION_PROVIDER=gemini"))
	}
	return errors.Join(errs...)
}

// EmailEnabled reports whether the configured mail relay has credentials.
func (c *Config) EmailEnabled() bool {
	if c.EmailFromAddress == "" {
		return false
	}
	switch c.EmailProvider {
	case "mailersend":
		return c.MailerSendAPIKey != ""
	default:
		return c.SMTPHost != "" && c.SMTPUsername != "" && c.SMTPPassword != ""
	}
}

// DriveEnabled reports whether object storage credentials are present.
func (c *Config) DriveEnabled() bool {
	switch c.DriveProvider {
	case "azure":
		return c.AzureConnectionString != ""
	default:
		return c.MinioEndpoint != "" && c.MinioAccessKey != "" && c.MinioSecretKey != ""
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func seconds(key string, fallback int) time.Duration {
	return time.Second * time.Duration(getEnvInt(key, fallback))
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
