// Package config loads process configuration from the environment.
//
// Values are resolved in this order: OS environment, then an optional .env
// file in the working directory. The populated struct is validated before it
// is returned; any missing or malformed value is a startup error.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Secret is a string that never prints its value.
type Secret string

// String implements fmt.Stringer.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***REDACTED***"
}

// Reveal returns the raw value.
func (s Secret) Reveal() string { return string(s) }

// Config is the full service configuration.
type Config struct {
	Port          string `envconfig:"PORT" default:"5050" validate:"required,numeric"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	MigrationsDir string `envconfig:"MIGRATIONS_DIR" default:"migrations"`

	OpenWeatherKey Secret `envconfig:"OPENWEATHER_KEY" validate:"required"`
	AdminToken     Secret `envconfig:"ADMIN_TOKEN" validate:"required,min=16"`

	DatabaseURL string        `envconfig:"DATABASE_URL" validate:"required,url"`
	DBMaxConns  int32         `envconfig:"DB_MAX_CONNS" default:"10" validate:"gte=1"`
	RedisURL    string        `envconfig:"REDIS_URL" validate:"required,url"`
	CacheTTL    time.Duration `envconfig:"CACHE_TTL" default:"10m"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*" validate:"min=1"`
	RateLimitPerMinute int      `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60" validate:"gte=1"`
}

// ErrorType classifies configuration failures.
type ErrorType string

const (
	ErrParsing    ErrorType = "parsing"
	ErrValidation ErrorType = "validation"
)

// Error is returned by Load.
type Error struct {
	Type ErrorType
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("config %s: %v", e.Type, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Load reads .env (if present), processes the environment and validates the
// result.
func Load() (*Config, error) {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &Error{Type: ErrParsing, Err: err}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, &Error{Type: ErrValidation, Err: err}
	}

	return &cfg, nil
}

// SlogLevel maps LogLevel to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
