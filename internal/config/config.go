// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every server setting.
type Config struct {
	Port   int    `env:"KAMETI_PORT" envDefault:"8080"`
	DBPath string `env:"KAMETI_DB_PATH" envDefault:"./data/kameti.db"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	JWTSecret string        `env:"KAMETI_JWT_SECRET"`
	TokenTTL  time.Duration `env:"KAMETI_TOKEN_TTL" envDefault:"24h"`

	// GatewaySecret verifies gateway webhook signatures. Required.
	GatewaySecret string `env:"KAMETI_GATEWAY_SECRET"`

	NotifyWebhookURL    string `env:"KAMETI_NOTIFY_WEBHOOK_URL"`
	NotifyWebhookSecret string `env:"KAMETI_NOTIFY_WEBHOOK_SECRET"`

	// OTelEndpoint is the OTLP/HTTP collector; empty disables tracing.
	OTelEndpoint string `env:"KAMETI_OTEL_ENDPOINT"`
}

// ClientConfig holds kametictl settings. Commands that touch the database
// directly (user add, token) share the server's DB path and JWT secret.
type ClientConfig struct {
	Server string `env:"KAMETI_SERVER" envDefault:"http://localhost:8080"`
	Token  string `env:"KAMETI_TOKEN"`

	DBPath    string        `env:"KAMETI_DB_PATH" envDefault:"./data/kameti.db"`
	JWTSecret string        `env:"KAMETI_JWT_SECRET"`
	TokenTTL  time.Duration `env:"KAMETI_TOKEN_TTL" envDefault:"24h"`
}

// LoadClient reads an optional .env file and parses the CLI settings.
func LoadClient(files ...string) (*ClientConfig, error) {
	if err := loadDotenv(files); err != nil {
		return nil, err
	}
	var cfg ClientConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

func loadDotenv(files []string) error {
	if err := godotenv.Load(files...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load dotenv: %w", err)
		}
		slog.Debug("No .env file found, relying on environment variables")
	}
	return nil
}

// Load reads an optional .env file and then parses the environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if err := loadDotenv(files); err != nil {
		return nil, err
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings env tags cannot express.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("KAMETI_JWT_SECRET is required")
	}
	if c.GatewaySecret == "" {
		return errors.New("KAMETI_GATEWAY_SECRET is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("KAMETI_PORT out of range: %d", c.Port)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("KAMETI_TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	return nil
}
