package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds CLI configuration. Flags override CARDROOM_* variables.
type Config struct {
	ServerURL string `env:"SERVER" envDefault:"http://localhost:8080"`
	Token     string `env:"TOKEN"`
	TokenFile string `env:"TOKEN_FILE"`
	Output    string `env:"OUTPUT" envDefault:"text"`
	Verbose   bool   `env:"VERBOSE"`
}

// LoadConfig reads CLI settings from the environment
func LoadConfig() (*Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Prefix: "CARDROOM_"}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if c.TokenFile == "" {
		c.TokenFile = defaultTokenFile()
	}
	return &c, nil
}

// Validate checks flag values
func (c *Config) Validate() error {
	switch c.Output {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("--output must be text or json, got %q", c.Output)
	}
}

// LoadToken loads the token from file if not already set
func (c *Config) LoadToken() error {
	if c.Token != "" {
		return nil
	}

	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // No token file is fine
		}
		return err
	}

	c.Token = strings.TrimSpace(string(data))
	return nil
}

// SaveToken saves the token to the token file
func (c *Config) SaveToken(token string) error {
	c.Token = token

	dir := filepath.Dir(c.TokenFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	return os.WriteFile(c.TokenFile, []byte(token), 0600)
}

// ClearToken forgets the saved token
func (c *Config) ClearToken() error {
	c.Token = ""
	if err := os.Remove(c.TokenFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cardroom/token"
	}
	return filepath.Join(home, ".cardroom", "token")
}
