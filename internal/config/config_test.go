package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/cardroom/internal/model"
)

type ConfigSuite struct {
	suite.Suite
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) TestDefaults() {
	cfg, err := LoadFrom(map[string]string{})
	s.Require().NoError(err)

	s.Equal("0.0.0.0:8080", cfg.Addr())
	s.Equal(StorageMemory, cfg.StorageType)
	s.Equal(12*time.Hour, cfg.TokenTTL)
	s.Equal(12, cfg.BcryptCost)
	s.Equal(60*time.Second, cfg.ThrottleWindow)
	s.Equal(10, cfg.ThrottleMaxFailures)
	s.Equal(time.Hour, cfg.OAuthJWKSTTL)
	s.Equal(5*time.Second, cfg.OAuthHTTPTimeout)
	s.Equal(50, cfg.DefaultPageSize)
	s.Equal(200, cfg.MaxPageSize)
	s.Empty(cfg.OAuthAudience)
	s.False(cfg.OAuthInsecureSkipAudience)

	providers, err := cfg.Providers()
	s.Require().NoError(err)
	s.Equal([]model.Provider{model.ProviderGuest, model.ProviderGoogle, model.ProviderApple}, providers)

	level, err := cfg.SlogLevel()
	s.Require().NoError(err)
	s.Equal(slog.LevelInfo, level)
}

func (s *ConfigSuite) TestOverrides() {
	cfg, err := LoadFrom(map[string]string{
		"CARDROOM_PORT":              "9000",
		"CARDROOM_STORAGE_TYPE":      "sqlite",
		"CARDROOM_SQLITE_PATH":       "/tmp/rooms.db",
		"CARDROOM_TOKEN_TTL":         "30m",
		"CARDROOM_OAUTH_AUDIENCE":    "web-client,ios-client",
		"CARDROOM_ALLOWED_PROVIDERS": "guest,google",
		"CARDROOM_LOG_LEVEL":         "debug",
	})
	s.Require().NoError(err)

	s.Equal(9000, cfg.Port)
	s.Equal("/tmp/rooms.db", cfg.SQLitePath)
	s.Equal(30*time.Minute, cfg.TokenTTL)
	s.Equal([]string{"web-client", "ios-client"}, cfg.OAuthAudience)

	providers, err := cfg.Providers()
	s.Require().NoError(err)
	s.Equal([]model.Provider{model.ProviderGuest, model.ProviderGoogle}, providers)

	level, _ := cfg.SlogLevel()
	s.Equal(slog.LevelDebug, level)
}

func (s *ConfigSuite) TestUnprefixedVariablesIgnored() {
	cfg, err := LoadFrom(map[string]string{"PORT": "1234"})
	s.Require().NoError(err)
	s.Equal(8080, cfg.Port)
}

func (s *ConfigSuite) TestInvalidConfigurations() {
	cases := map[string]map[string]string{
		"unknown storage":      {"CARDROOM_STORAGE_TYPE": "mongo"},
		"redis without url":    {"CARDROOM_STORAGE_TYPE": "redis"},
		"postgres without dsn": {"CARDROOM_STORAGE_TYPE": "postgres"},
		"bad port":             {"CARDROOM_PORT": "70000"},
		"bad duration":         {"CARDROOM_TOKEN_TTL": "soon"},
		"unknown provider":     {"CARDROOM_ALLOWED_PROVIDERS": "guest,myspace"},
		"half admin":           {"CARDROOM_ADMIN_NAME": "root"},
		"bad log level":        {"CARDROOM_LOG_LEVEL": "chatty"},
		"page sizes":           {"CARDROOM_DEFAULT_PAGE_SIZE": "300"},
	}
	for name, environ := range cases {
		_, err := LoadFrom(environ)
		s.Error(err, name)
	}
}
