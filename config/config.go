package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime setting of the service.
type Config struct {
	DatabaseURL  string        `env:"DATABASE_URL,required"`
	JWTSecretKey string        `env:"JWT_SECRET_KEY,required"`
	ServerPort   int           `env:"SERVER_PORT" envDefault:"8080"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"168h"`
	AutoMigrate  bool          `env:"AUTO_MIGRATE" envDefault:"true"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	Storage StorageConfig
	SMTP    SMTPConfig
	Notify  NotifyConfig

	OTelEndpoint          string        `env:"OTEL_ENDPOINT"`
	InviteCleanupInterval time.Duration `env:"INVITE_CLEANUP_INTERVAL" envDefault:"1h"`
}

type StorageConfig struct {
	AccountID       string `env:"STORAGE_ACCOUNT_ID"`
	Endpoint        string `env:"STORAGE_ENDPOINT"`
	Region          string `env:"STORAGE_REGION" envDefault:"auto"`
	AccessKeyID     string `env:"STORAGE_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"STORAGE_SECRET_ACCESS_KEY"`
	Bucket          string `env:"STORAGE_BUCKET"`
	PublicBaseURL   string `env:"STORAGE_PUBLIC_BASE_URL"`
}

// Enabled reports whether enough is set to build an uploader.
func (c StorageConfig) Enabled() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != "" && c.Bucket != ""
}

type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT" envDefault:"587"`
	User     string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM"`
}

type NotifyConfig struct {
	WebhookURL string `env:"WORKFLOW_WEBHOOK_URL"`
	Buffer     int    `env:"NOTIFY_BUFFER" envDefault:"256"`
	Workers    int    `env:"NOTIFY_WORKERS" envDefault:"2"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort)
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}
	if c.SMTP.Host != "" && (c.SMTP.Port <= 0 || c.SMTP.Port > 65535) {
		return fmt.Errorf("SMTP_PORT must be between 1 and 65535, got %d", c.SMTP.Port)
	}
	if c.Notify.Buffer < 1 || c.Notify.Workers < 1 {
		return errors.New("NOTIFY_BUFFER and NOTIFY_WORKERS must be at least 1")
	}
	if c.InviteCleanupInterval <= 0 {
		return errors.New("INVITE_CLEANUP_INTERVAL must be positive")
	}
	return nil
}
