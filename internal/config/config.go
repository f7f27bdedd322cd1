package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	// Incoming-webhook URL of the chat channel. Empty means print to stdout.
	WebhookURL  string        `env:"GH_NOTIFY_WEBHOOK_URL"`
	Username    string        `env:"GH_NOTIFY_USERNAME" envDefault:"GitHub"`
	IconURL     string        `env:"GH_NOTIFY_ICON_URL" envDefault:"https://github.githubassets.com/images/modules/logos_page/GitHub-Mark.png"`
	Channel     string        `env:"GH_NOTIFY_CHANNEL"`
	PostTimeout time.Duration `env:"GH_NOTIFY_POST_TIMEOUT" envDefault:"10s"`

	LogLevel    string `env:"GH_NOTIFY_LOG_LEVEL" envDefault:"info"`
	Development bool   `env:"GH_NOTIFY_DEV"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TraceStderr  bool   `env:"GH_NOTIFY_TRACE_STDERR"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.PostTimeout <= 0 {
		return Config{}, fmt.Errorf("GH_NOTIFY_POST_TIMEOUT must be positive, got %s", cfg.PostTimeout)
	}
	return cfg, nil
}
