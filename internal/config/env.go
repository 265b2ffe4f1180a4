package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	ProviderGateway = "gateway"
	ProviderGemini  = "gemini"
	ProviderMock    = "mock"
)

type Config struct {
	Port          string
	DatabaseURL   string
	StoreDriver   string
	RunMigrations bool

	JWTSecret   string
	JWTAudience string
	TokenTTL    time.Duration
	AdminEmails []string

	LLMProvider       string
	LLMGatewayURL     string
	LLMAPIKey         string
	GeminiAPIKey      string
	GenModel          string
	CompletionTimeout time.Duration

	CORSOrigins        []string
	RateLimitChat      int
	AdminSessionWindow int

	OutboxInterval    time.Duration
	OutboxWorkers     int
	OutboxMaxAttempts int

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	LogLevel string
}

// LoadConfig loads the environment variables (and an optional .env file) and returns the config.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		StoreDriver:   getEnv("STORE_DRIVER", StoreDriverPostgres),
		RunMigrations: getEnvBool("RUN_MIGRATIONS", true),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTAudience: getEnv("JWT_AUDIENCE", "authenticated"),
		TokenTTL:    getEnvDuration("TOKEN_TTL", 24*time.Hour),
		AdminEmails: getEnvList("ADMIN_EMAILS"),

		LLMProvider:       getEnv("LLM_PROVIDER", ProviderGateway),
		LLMGatewayURL:     getEnv("LLM_GATEWAY_URL", "https://ai.gateway.lovable.dev/v1"),
		LLMAPIKey:         getEnv("LLM_API_KEY", ""),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GenModel:          getEnv("GEN_MODEL", "google/gemini-3-flash-preview"),
		CompletionTimeout: getEnvDuration("COMPLETION_TIMEOUT", 2*time.Minute),

		CORSOrigins:        getEnvList("CORS_ORIGINS"),
		RateLimitChat:      getEnvInt("RATE_LIMIT_CHAT", 20),
		AdminSessionWindow: getEnvInt("ADMIN_SESSION_WINDOW", 50),

		OutboxInterval:    getEnvDuration("OUTBOX_INTERVAL", 30*time.Second),
		OutboxWorkers:     getEnvInt("OUTBOX_WORKERS", 4),
		OutboxMaxAttempts: getEnvInt("OUTBOX_MAX_ATTEMPTS", 10),

		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.StoreDriver == StoreDriverPostgres && c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	switch c.LLMProvider {
	case ProviderGateway:
		if c.LLMAPIKey == "" {
			missing = append(missing, "LLM_API_KEY")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	if c.StoreDriver != StoreDriverPostgres && c.StoreDriver != StoreDriverMemory {
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}
	return nil
}

// ExportEnabled reports whether transcript export to object storage is configured.
func (c *Config) ExportEnabled() bool {
	return c.BucketName != "" && c.AwsAccessKey != "" && c.AwsSecretKey != ""
}

// IsAdminEmail reports whether email is listed in ADMIN_EMAILS.
func (c *Config) IsAdminEmail(email string) bool {
	for _, e := range c.AdminEmails {
		if strings.EqualFold(e, strings.TrimSpace(email)) {
			return true
		}
	}
	return false
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config value is not an int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config value is not a bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config value is not a duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func getEnvList(key string) []string {
	v := getEnv(key, "")
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
