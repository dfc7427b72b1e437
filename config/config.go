package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port            string
	Environment     string
	AllowedOrigins  []string
	StaticDir       string
	JWTSecret       string
	ShutdownTimeout time.Duration
	Log             LogConfig
	Redis           RedisConfig
	Limits          LimitConfig
}

type LogConfig struct {
	Format string // "text" or "json"
	Level  slog.Level
}

// RedisConfig configures the optional presence mirror.
// An empty Host disables it.
type RedisConfig struct {
	Host        string
	Port        string
	Password    string
	DB          int
	PresenceTTL time.Duration
}

// LimitConfig bounds what a single signaling connection may send
type LimitConfig struct {
	MaxMessageBytes   int64
	MessagesPerSecond float64
	MessageBurst      int
}

func (c RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// AdminEnabled reports whether the JWT-guarded admin API is served
func (c *Config) AdminEnabled() bool {
	return c.JWTSecret != ""
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	return load(os.LookupEnv)
}

func load(lookup func(string) (string, bool)) (*Config, error) {
	getEnv := func(key, defaultValue string) string {
		if value, ok := lookup(key); ok && value != "" {
			return value
		}
		return defaultValue
	}

	// Parse allowed origins (comma-separated, "*" allows any)
	var origins []string
	for _, o := range strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	cfg := &Config{
		Port:           getEnv("PORT", "3000"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AllowedOrigins: origins,
		StaticDir:      getEnv("STATIC_DIR", "public"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		Log: LogConfig{
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
	}

	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return nil, fmt.Errorf("invalid LOG_FORMAT %q (expected text or json)", cfg.Log.Format)
	}
	if err := cfg.Log.Level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	var err error
	if cfg.Redis.DB, err = parseInt("REDIS_DB", getEnv("REDIS_DB", "0")); err != nil {
		return nil, err
	}
	if cfg.Redis.PresenceTTL, err = parseDuration("PRESENCE_TTL", getEnv("PRESENCE_TTL", "24h")); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = parseDuration("SHUTDOWN_TIMEOUT", getEnv("SHUTDOWN_TIMEOUT", "10s")); err != nil {
		return nil, err
	}

	maxBytes, err := parseInt("MAX_MESSAGE_BYTES", getEnv("MAX_MESSAGE_BYTES", "65536"))
	if err != nil {
		return nil, err
	}
	cfg.Limits.MaxMessageBytes = int64(maxBytes)

	if cfg.Limits.MessagesPerSecond, err = strconv.ParseFloat(getEnv("MAX_MESSAGES_PER_SECOND", "50"), 64); err != nil || cfg.Limits.MessagesPerSecond <= 0 {
		return nil, fmt.Errorf("invalid MAX_MESSAGES_PER_SECOND %q", getEnv("MAX_MESSAGES_PER_SECOND", "50"))
	}
	if cfg.Limits.MessageBurst, err = parseInt("MESSAGE_BURST", getEnv("MESSAGE_BURST", "100")); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewLogger builds the process logger from the log settings
func NewLogger(cfg LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func parseInt(key, raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, raw)
	}
	return n, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
