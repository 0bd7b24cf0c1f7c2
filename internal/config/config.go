package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Service configuration
	ServicePort string `env:"SERVICE_PORT" env-default:"8080"`
	ServiceName string `env:"SERVICE_NAME" env-default:"licitafiles"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`
	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat   string `env:"LOG_FORMAT" env-default:"text"`

	// Blob storage; empty means in-memory mode
	BlobStorageURL   string `env:"BLOB_STORAGE_URL"`
	BlobCreateBucket bool   `env:"BLOB_CREATE_BUCKET" env-default:"false"`
	MockStrictDelete bool   `env:"MOCK_STRICT_DELETE" env-default:"false"`

	// Lifetime of presigned download links for remote assets
	DownloadURLExpiry time.Duration `env:"DOWNLOAD_URL_EXPIRY" env-default:"1h"`

	// Optional listing cache
	RedisURL        string        `env:"REDIS_URL"`
	ListingCacheTTL time.Duration `env:"LISTING_CACHE_TTL" env-default:"30s"`

	// Optional audit log (MySQL/TiDB DSN)
	AuditDSN string `env:"AUDIT_DSN"`

	// Optional OTLP HTTP endpoint, e.g. localhost:4318
	OTelEndpoint string `env:"OTEL_EXPORTER_ENDPOINT"`
}

// LoadConfig reads envFile (or ./.env when envFile is empty and the file
// exists) into the process environment, then maps the environment onto Config.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return &cfg, nil
}

// IsProduction reports whether diagnostic details must be hidden
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// GetListenAddr returns the HTTP listen address
func (c *Config) GetListenAddr() string {
	return ":" + c.ServicePort
}

// Usage describes every supported environment variable
func Usage() string {
	var cfg Config
	text, err := cleanenv.GetDescription(&cfg, nil)
	if err != nil {
		return ""
	}
	return text
}
