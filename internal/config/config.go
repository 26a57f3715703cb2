// Package config loads server settings from CARDROOM_* environment variables
package config

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mcoot/cardroom/internal/model"
)

// Prefix is prepended to every variable name
const Prefix = "CARDROOM_"

// Storage backends
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Config holds every server setting
type Config struct {
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"8080"`

	StorageType string `env:"STORAGE_TYPE" envDefault:"memory"`
	RedisURL    string `env:"REDIS_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"cardroom.db"`
	PostgresDSN string `env:"POSTGRES_DSN"`

	TokenTTL            time.Duration `env:"TOKEN_TTL" envDefault:"12h"`
	BcryptCost          int           `env:"BCRYPT_COST" envDefault:"12"`
	ThrottleWindow      time.Duration `env:"THROTTLE_WINDOW" envDefault:"60s"`
	ThrottleMaxFailures int           `env:"THROTTLE_MAX_FAILURES" envDefault:"10"`

	OAuthAudience             []string      `env:"OAUTH_AUDIENCE" envSeparator:","`
	OAuthInsecureSkipAudience bool          `env:"OAUTH_INSECURE_SKIP_AUDIENCE"`
	OAuthJWKSTTL              time.Duration `env:"OAUTH_JWKS_TTL" envDefault:"1h"`
	OAuthHTTPTimeout          time.Duration `env:"OAUTH_HTTP_TIMEOUT" envDefault:"5s"`
	GoogleJWKSURL             string        `env:"GOOGLE_JWKS_URL"`
	AppleJWKSURL              string        `env:"APPLE_JWKS_URL"`
	AllowedProviders          []string      `env:"ALLOWED_PROVIDERS" envSeparator:"," envDefault:"guest,google,apple"`

	AdminName     string `env:"ADMIN_NAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	TrustProxyHeaders bool   `env:"TRUST_PROXY_HEADERS"`

	DefaultPageSize int `env:"DEFAULT_PAGE_SIZE" envDefault:"50"`
	MaxPageSize     int `env:"MAX_PAGE_SIZE" envDefault:"200"`
}

// Load reads the process environment
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom reads the given variables instead of the process environment
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements
func (c Config) Validate() error {
	switch c.StorageType {
	case StorageMemory:
	case StorageRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%sREDIS_URL is required when %sSTORAGE_TYPE=redis", Prefix, Prefix)
		}
	case StorageSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("%sSQLITE_PATH is required when %sSTORAGE_TYPE=sqlite", Prefix, Prefix)
		}
	case StoragePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("%sPOSTGRES_DSN is required when %sSTORAGE_TYPE=postgres", Prefix, Prefix)
		}
	default:
		return fmt.Errorf("invalid %sSTORAGE_TYPE %q", Prefix, c.StorageType)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid %sPORT %d", Prefix, c.Port)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("%sTOKEN_TTL must be positive", Prefix)
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize < c.DefaultPageSize {
		return fmt.Errorf("page sizes must satisfy 0 < %sDEFAULT_PAGE_SIZE <= %sMAX_PAGE_SIZE", Prefix, Prefix)
	}
	if (c.AdminName == "") != (c.AdminPassword == "") {
		return fmt.Errorf("%sADMIN_NAME and %sADMIN_PASSWORD must be set together", Prefix, Prefix)
	}
	if _, err := c.Providers(); err != nil {
		return err
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Addr returns the listen address
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Providers parses AllowedProviders
func (c Config) Providers() ([]model.Provider, error) {
	providers := make([]model.Provider, 0, len(c.AllowedProviders))
	for _, raw := range c.AllowedProviders {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		p, err := model.ParseProvider(raw)
		if err != nil {
			return nil, fmt.Errorf("%sALLOWED_PROVIDERS: %q: %w", Prefix, raw, err)
		}
		providers = append(providers, p)
	}
	return providers, nil
}

// SlogLevel parses LogLevel
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid %sLOG_LEVEL %q", Prefix, c.LogLevel)
	}
	return level, nil
}
