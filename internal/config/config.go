package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the storefront configuration read from the environment.
type Config struct {
	AppEnv           string `envconfig:"APP_ENV" default:"development"`
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat        string `envconfig:"LOG_FORMAT" default:"text"`
	HTTPListenAddr   string `envconfig:"HTTP_LISTEN_ADDR" default:":8080"`
	PublicBaseURL    string `envconfig:"PUBLIC_BASE_URL"`
	PublicBasePath   string `envconfig:"PUBLIC_BASE_PATH"`
	MetricsNamespace string `envconfig:"METRICS_NAMESPACE" default:"gulf_store"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"sqlite"`
	StoreDSN    string `envconfig:"STORE_DSN" default:"data/gulf-store.db"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisTLS      bool   `envconfig:"REDIS_TLS" default:"false"`

	AdminUsername     string `envconfig:"ADMIN_USERNAME" default:"admin"`
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`

	CheckoutDelay       time.Duration `envconfig:"CHECKOUT_DELAY" default:"2500ms"`
	SearchDebounce      time.Duration `envconfig:"SEARCH_DEBOUNCE" default:"2s"`
	LiveVisitorInterval time.Duration `envconfig:"LIVE_VISITOR_INTERVAL" default:"5s"`

	GeminiAPIKey      string        `envconfig:"GEMINI_API_KEY"`
	GeminiBaseURL     string        `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com"`
	GeminiModel       string        `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash-preview-tts"`
	GeminiVoice       string        `envconfig:"GEMINI_VOICE" default:"Fenrir"`
	GeminiTimeout     time.Duration `envconfig:"GEMINI_TIMEOUT" default:"30s"`
	NarrationCacheTTL time.Duration `envconfig:"NARRATION_CACHE_TTL" default:"24h"`

	CloudinaryURL    string `envconfig:"CLOUDINARY_URL"`
	CloudinaryFolder string `envconfig:"CLOUDINARY_FOLDER" default:"gulf-store"`

	WhatsAppAlerts    bool   `envconfig:"WA_ORDER_ALERTS" default:"false"`
	WhatsAppStorePath string `envconfig:"WA_STORE_PATH" default:"data/whatsmeow.db"`
	WhatsAppLogLevel  string `envconfig:"WA_LOG_LEVEL" default:"WARN"`
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks combinations envconfig cannot express.
func (c *Config) Validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	switch c.StoreDriver {
	case "memory", "sqlite", "postgres", "postgresql", "mysql", "mariadb":
	case "redis":
		if c.RedisAddr == "" {
			return errors.New("STORE_DRIVER=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.CheckoutDelay < 0 || c.SearchDebounce < 0 || c.LiveVisitorInterval < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}

// IsProduction reports whether APP_ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}
