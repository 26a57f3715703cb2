package redis

import "time"

// Config holds Redis connection and behavior settings
type Config struct {
	// URL is the Redis connection URL (e.g., redis://localhost:6379)
	URL string

	// Pool settings
	PoolSize     int
	MinIdleConns int

	// TokenGrace keeps token keys alive past their expiry so resolve can
	// still tell "expired" from "unknown" until the sweep removes them.
	TokenGrace time.Duration

	// MaxTxRetries bounds optimistic WATCH/MULTI retries per operation
	MaxTxRetries int
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		URL:          "redis://localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		TokenGrace:   time.Hour,
		MaxTxRetries: 32,
	}
}
