package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"5328"`
	LogDebug bool   `env:"LOG_DEBUG"`

	// Relative paths are resolved against the executable's directory.
	ModelPath        string        `env:"MODEL_PATH" envDefault:"pipeline_voting.json"`
	ModelURL         string        `env:"MODEL_URL"`
	PredictTimeout   time.Duration `env:"PREDICT_TIMEOUT" envDefault:"10s"`
	PredictSerialize bool          `env:"PREDICT_SERIALIZE"`

	DescriptorProvider string        `env:"DESCRIPTOR_PROVIDER" envDefault:"padel"` // padel | remote
	DescriptorURL      string        `env:"DESCRIPTOR_URL"`
	DescriptorTimeout  time.Duration `env:"DESCRIPTOR_TIMEOUT" envDefault:"60s"`
	PaDELJava          string        `env:"PADEL_JAVA" envDefault:"java"`
	PaDELJar           string        `env:"PADEL_JAR" envDefault:"PaDEL-Descriptor/PaDEL-Descriptor.jar"`

	AllowedOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`

	DatabaseURL      string        `env:"DATABASE_URL"`
	PostgresUser     string        `env:"POSTGRES_USER"`
	PostgresPassword string        `env:"POSTGRES_PASSWORD"`
	PostgresHost     string        `env:"PGHOST" envDefault:"db"`
	PostgresPort     string        `env:"PGPORT" envDefault:"5432"`
	PostgresDB       string        `env:"POSTGRES_DB" envDefault:"pkm2"`
	CacheMaxAge      time.Duration `env:"DESCRIPTOR_CACHE_MAX_AGE"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	WebhookURL       string `env:"WEBHOOK_URL"`
}

// Load reads the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.Port = strings.TrimSpace(cfg.Port)
	if cfg.Port == "" {
		cfg.Port = "5328"
	}
	switch cfg.DescriptorProvider {
	case "padel", "remote":
	default:
		return nil, fmt.Errorf("DESCRIPTOR_PROVIDER must be padel or remote, got %q", cfg.DescriptorProvider)
	}
	if cfg.DescriptorProvider == "remote" && strings.TrimSpace(cfg.DescriptorURL) == "" {
		return nil, fmt.Errorf("DESCRIPTOR_URL is required for the remote descriptor provider")
	}
	return &cfg, nil
}

// DSN prefers DATABASE_URL; otherwise it is built from POSTGRES_* when a user
// is set. Empty means no database.
func (c *Config) DSN() string {
	if v := strings.TrimSpace(c.DatabaseURL); v != "" {
		return v
	}
	if strings.TrimSpace(c.PostgresUser) == "" {
		return ""
	}
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     net.JoinHostPort(c.PostgresHost, c.PostgresPort),
		Path:     "/" + c.PostgresDB,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}
