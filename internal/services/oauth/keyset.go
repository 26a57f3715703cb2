package oauth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	"github.com/mcoot/cardroom/internal/model"
)

// CacheConfig tunes the JWKS cache
type CacheConfig struct {
	// RefreshInterval is how long a fetched key set is trusted
	RefreshInterval time.Duration
	// RefreshRateLimit bounds refetches triggered by unknown key IDs.
	// Zero disables the limit.
	RefreshRateLimit time.Duration
	// HTTPTimeout bounds each key-set fetch
	HTTPTimeout time.Duration
}

// DefaultCacheConfig returns the production cache settings
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		RefreshInterval:  time.Hour,
		RefreshRateLimit: 5 * time.Minute,
		HTTPTimeout:      5 * time.Second,
	}
}

// KeySetCache holds one refreshing key set per JWKS URL. Sets are fetched on
// first use and refreshed in the background by keyfunc. A first fetch only
// holds up callers of the same URL.
type KeySetCache struct {
	cfg    CacheConfig
	client *http.Client
	logger *slog.Logger

	fetches singleflight.Group

	mu   sync.RWMutex
	sets map[string]*keySet
}

// keySet is one provider's JWKS plus a count of failed refreshes
type keySet struct {
	jwks            *keyfunc.JWKS
	refreshFailures atomic.Uint64
}

// keyfunc looks up the signing key. keyfunc reports a failed refetch for an
// unknown kid the same way as a missing kid, so a refresh failure recorded
// during the lookup turns it into an outage.
func (k *keySet) keyfunc(token *jwt.Token) (any, error) {
	before := k.refreshFailures.Load()
	key, err := k.jwks.Keyfunc(token)
	if errors.Is(err, keyfunc.ErrKIDNotFound) && k.refreshFailures.Load() != before {
		return nil, fmt.Errorf("%w: key set refresh failed", model.ErrProviderUnavailable)
	}
	return key, err
}

// NewKeySetCache creates an empty cache
func NewKeySetCache(cfg CacheConfig, logger *slog.Logger) *KeySetCache {
	defaults := DefaultCacheConfig()
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaults.RefreshInterval
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaults.HTTPTimeout
	}
	return &KeySetCache{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		logger: logger.With(slog.String("component", "jwks")),
		sets:   make(map[string]*keySet),
	}
}

// Keyfunc returns the jwt.Keyfunc for the key set at url, fetching it if this
// is the first request for that URL. Fetch failures are ErrProviderUnavailable.
func (c *KeySetCache) Keyfunc(url string) (jwt.Keyfunc, error) {
	c.mu.RLock()
	set, ok := c.sets[url]
	c.mu.RUnlock()
	if ok {
		return set.keyfunc, nil
	}

	v, err, _ := c.fetches.Do(url, func() (any, error) {
		c.mu.RLock()
		set, ok := c.sets[url]
		c.mu.RUnlock()
		if ok {
			return set, nil
		}

		set = &keySet{}
		jwks, err := keyfunc.Get(url, c.options(url, set))
		if err != nil {
			c.logger.Warn("key set fetch failed", slog.String("url", url), slog.String("error", err.Error()))
			return nil, fmt.Errorf("%w: fetch key set: %v", model.ErrProviderUnavailable, err)
		}
		set.jwks = jwks

		c.mu.Lock()
		c.sets[url] = set
		c.mu.Unlock()
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*keySet).keyfunc, nil
}

func (c *KeySetCache) options(url string, set *keySet) keyfunc.Options {
	return keyfunc.Options{
		Client: c.client,
		RefreshErrorHandler: func(err error) {
			set.refreshFailures.Add(1)
			c.logger.Warn("key set refresh failed", slog.String("url", url), slog.String("error", err.Error()))
		},
		RefreshInterval:   c.cfg.RefreshInterval,
		RefreshRateLimit:  c.cfg.RefreshRateLimit,
		RefreshTimeout:    c.cfg.HTTPTimeout,
		RefreshUnknownKID: true,
	}
}

// Close stops every background refresh
func (c *KeySetCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for url, set := range c.sets {
		set.jwks.EndBackground()
		delete(c.sets, url)
	}
}

func isKeyLookupFailure(err error) bool {
	return errors.Is(err, keyfunc.ErrKIDNotFound) || errors.Is(err, keyfunc.ErrJWKAlgMismatch)
}
