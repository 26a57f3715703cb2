package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mcoot/cardroom/internal/api/sse"
	"github.com/mcoot/cardroom/internal/config"
	"github.com/mcoot/cardroom/internal/dependencies/clock"
	"github.com/mcoot/cardroom/internal/dependencies/random"
	"github.com/mcoot/cardroom/internal/model"
	"github.com/mcoot/cardroom/internal/services/auth"
	"github.com/mcoot/cardroom/internal/services/oauth"
	"github.com/mcoot/cardroom/internal/services/password"
	"github.com/mcoot/cardroom/internal/services/room"
	"github.com/mcoot/cardroom/internal/services/throttle"
	"github.com/mcoot/cardroom/internal/services/token"
	"github.com/mcoot/cardroom/internal/storage"
	"github.com/mcoot/cardroom/internal/storage/memory"
	redisstorage "github.com/mcoot/cardroom/internal/storage/redis"
	"github.com/mcoot/cardroom/internal/storage/sqldb"
)

// Storage type constants
const (
	StorageTypeMemory   = config.StorageMemory
	StorageTypeRedis    = config.StorageRedis
	StorageTypeSQLite   = config.StorageSQLite
	StorageTypePostgres = config.StoragePostgres
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Hasher         *password.Hasher
	KeySets        *oauth.KeySetCache
	Verifier       auth.IDTokenVerifier
	Ledger         *token.Ledger
	Throttle       *throttle.Throttle
	AuthService    *auth.Service
	RoomController *room.Controller

	// Room event streams
	Streams *sse.HubManager
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string
	// PostgresDSN is the connection string (required if StorageType is "postgres")
	PostgresDSN string

	// BcryptCost for new password hashes; zero uses password.DefaultCost
	BcryptCost int
	// TokenTTL for session tokens; zero uses token.DefaultTTL
	TokenTTL time.Duration
	// Throttle limits failed logins; zero value uses throttle.DefaultConfig()
	Throttle throttle.Config
	// OAuth configures ID token verification. No providers disables OAuth.
	OAuth oauth.Config
	// KeySets configures the JWKS cache; zero value uses oauth.DefaultCacheConfig()
	KeySets oauth.CacheConfig
	// AuthConfig holds configuration for the auth service (optional)
	// If zero value, defaults to auth.DefaultConfig()
	AuthConfig auth.Config
	// RoomConfig holds listing limits (optional)
	RoomConfig room.Config

	// AdminName and AdminPassword, when set, bootstrap an admin guest
	AdminName     string
	AdminPassword string
}

// ConfigFromSettings translates environment settings into a factory Config
func ConfigFromSettings(settings config.Config, logger *slog.Logger) (Config, error) {
	providers, err := settings.Providers()
	if err != nil {
		return Config{}, err
	}

	oauthCfg := oauth.Config{
		Providers:            map[model.Provider]oauth.ProviderConfig{},
		Audience:             settings.OAuthAudience,
		InsecureSkipAudience: settings.OAuthInsecureSkipAudience,
	}
	for _, p := range providers {
		switch p {
		case model.ProviderGoogle:
			oauthCfg.Providers[p] = oauth.GoogleProvider(settings.GoogleJWKSURL)
		case model.ProviderApple:
			oauthCfg.Providers[p] = oauth.AppleProvider(settings.AppleJWKSURL)
		}
	}

	keySets := oauth.DefaultCacheConfig()
	keySets.RefreshInterval = settings.OAuthJWKSTTL
	keySets.HTTPTimeout = settings.OAuthHTTPTimeout

	authCfg := auth.DefaultConfig()
	authCfg.AllowedProviders = providers

	cfg := Config{
		Logger:      logger,
		StorageType: settings.StorageType,
		SQLitePath:  settings.SQLitePath,
		PostgresDSN: settings.PostgresDSN,
		BcryptCost:  settings.BcryptCost,
		TokenTTL:    settings.TokenTTL,
		Throttle: throttle.Config{
			Window:      settings.ThrottleWindow,
			MaxFailures: settings.ThrottleMaxFailures,
		},
		OAuth:      oauthCfg,
		KeySets:    keySets,
		AuthConfig: authCfg,
		RoomConfig: room.Config{
			DefaultPageSize: settings.DefaultPageSize,
			MaxPageSize:     settings.MaxPageSize,
		},
		AdminName:     settings.AdminName,
		AdminPassword: settings.AdminPassword,
	}
	if settings.StorageType == StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = settings.RedisURL
		cfg.RedisConfig = &redisCfg
	}
	return cfg, nil
}

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := openStorage(cfg)
	if err != nil {
		return nil, err
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	keysCfg := cfg.KeySets
	if keysCfg == (oauth.CacheConfig{}) {
		keysCfg = oauth.DefaultCacheConfig()
	}
	var (
		keys     *oauth.KeySetCache
		verifier auth.IDTokenVerifier
	)
	if len(cfg.OAuth.Providers) > 0 {
		keys = oauth.NewKeySetCache(keysCfg, logger)
		verifier = oauth.NewVerifier(cfg.OAuth, keys, clk, logger)
	}

	app := newWithDependencies(store, clk, rnd, verifier, cfg, logger)
	app.KeySets = keys

	if cfg.AdminName != "" {
		if _, err := app.AuthService.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminPassword); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("bootstrap admin: %w", err)
		}
	}
	return app, nil
}

func openStorage(cfg Config) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		return redisstorage.New(*cfg.RedisConfig)
	case StorageTypeSQLite:
		return sqldb.OpenSQLite(cfg.SQLitePath)
	case StorageTypePostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("PostgresDSN required when StorageType is postgres")
		}
		return sqldb.OpenPostgres(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be memory, redis, sqlite or postgres", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	verifier auth.IDTokenVerifier,
	cfg Config,
	logger *slog.Logger,
) *App {
	authCfg := cfg.AuthConfig
	if authCfg.AllowedProviders == nil {
		authCfg = auth.DefaultConfig()
	}

	hasher := password.New(cfg.BcryptCost)
	ledger := token.New(store, clk, rnd, logger, cfg.TokenTTL)
	thr := throttle.New(cfg.Throttle, clk)
	authService := auth.New(store, clk, hasher, verifier, ledger, thr, logger, authCfg)
	roomController := room.NewController(store, clk, rnd, logger, cfg.RoomConfig)
	streams := sse.NewHubManager(logger)
	roomController.SetNotifier(streams)

	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		Hasher:         hasher,
		Verifier:       verifier,
		Ledger:         ledger,
		Throttle:       thr,
		AuthService:    authService,
		RoomController: roomController,
		Streams:        streams,
	}
}

// Close disconnects event watchers, stops background key refresh and
// releases storage
func (a *App) Close() error {
	a.Streams.Close()
	if a.KeySets != nil {
		a.KeySets.Close()
	}
	return a.Storage.Close()
}
