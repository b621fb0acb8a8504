package config

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/set-night/wondercam/internal/domain"
)

type Config struct {
	// Core
	BotToken    string `env:"BOT_TOKEN,required,notEmpty"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// WonderCam AI backend
	APIURL   string `env:"WONDERCAM_API_URL" envDefault:"http://localhost:8000"`
	APIToken string `env:"WONDERCAM_API_TOKEN"`
	Model    string `env:"WONDERCAM_MODEL" envDefault:"gemini-2.0-flash-preview-image-generation"`

	// Languages
	DefaultLanguage    string   `env:"DEFAULT_LANGUAGE" envDefault:"en"`
	SupportedLanguages []string `env:"SUPPORTED_LANGUAGES" envSeparator:"," envDefault:"en,zh,es,fr,ja"`

	// Credits
	CreditsPerTurn float64 `env:"CREDITS_PER_TURN" envDefault:"1"`
	WelcomeCredits float64 `env:"WELCOME_CREDITS" envDefault:"20"`

	// Admin
	AdminIDs []int64 `env:"ADMIN_IDS" envSeparator:","`

	// Bot behavior
	DropPendingUpdates bool `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`

	// Logging
	LogLevel             string `env:"LOG_LEVEL" envDefault:"info"`
	LogTelegramChatID    int64  `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError        int    `env:"LOG_TOPIC_ERROR"`
	LogTopicRegistration int    `env:"LOG_TOPIC_REGISTRATION"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if !c.IsSupportedLanguage(c.DefaultLanguage) {
		return fmt.Errorf("default language %q: %w", c.DefaultLanguage, domain.ErrUnsupportedLanguage)
	}
	if c.CreditsPerTurn < 0 {
		return fmt.Errorf("credits per turn %v: %w", c.CreditsPerTurn, domain.ErrInvalidAmount)
	}
	return nil
}

func (c *Config) IsSupportedLanguage(lang string) bool {
	return slices.Contains(c.SupportedLanguages, lang)
}

func (c *Config) IsAdmin(telegramID int64) bool {
	return slices.Contains(c.AdminIDs, telegramID)
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
