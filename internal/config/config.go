package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Provider        string        `env:"PROVIDER"          envDefault:"gemini"`
	Model           string        `env:"MODEL"`
	ProviderBaseURL string        `env:"PROVIDER_BASE_URL"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT"  envDefault:"60s"`

	GoogleAPIKey    string `env:"GOOGLE_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	Token        string  `env:"TOKEN"`
	AllowedUsers []int64 `env:"ALLOWED_USERS"`

	DBPath           string        `env:"DB_PATH"           envDefault:"db.sqlite"`
	HistoryRetention time.Duration `env:"HISTORY_RETENTION" envDefault:"720h"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	cfg.Token = strings.TrimSpace(cfg.Token)

	return cfg, nil
}

// ServerCredential returns the process-wide key for the selected provider.
func (c Config) ServerCredential() string {
	switch c.Provider {
	case "openai":
		return strings.TrimSpace(c.OpenAIAPIKey)
	case "anthropic":
		return strings.TrimSpace(c.AnthropicAPIKey)
	default:
		return strings.TrimSpace(c.GoogleAPIKey)
	}
}

// CredentialEnvVar names the variable ServerCredential reads.
func (c Config) CredentialEnvVar() string {
	switch c.Provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	default:
		return "GOOGLE_API_KEY"
	}
}

func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}
