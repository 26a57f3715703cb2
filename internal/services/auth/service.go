package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcoot/cardroom/internal/dependencies/clock"
	"github.com/mcoot/cardroom/internal/model"
	"github.com/mcoot/cardroom/internal/services/oauth"
	"github.com/mcoot/cardroom/internal/services/password"
	"github.com/mcoot/cardroom/internal/services/throttle"
	"github.com/mcoot/cardroom/internal/services/token"
	"github.com/mcoot/cardroom/internal/storage"
)

// IDTokenVerifier checks an external provider's ID token
type IDTokenVerifier interface {
	Verify(ctx context.Context, provider model.Provider, idToken string) (*oauth.Claims, error)
}

// LoginRequest carries one login attempt
type LoginRequest struct {
	Provider    model.Provider
	IDToken     string
	DisplayName string
	Password    string
	// ClientKey identifies the caller for failed-attempt throttling
	ClientKey string
}

// Session is the result of a successful login
type Session struct {
	Identity *model.Identity
	Token    *model.SessionToken
}

// Config holds configuration for the auth service
type Config struct {
	// AllowedProviders lists the providers accepted by Login
	AllowedProviders []model.Provider
	// SweepInterval spaces out the expired-token sweep run by Resolve.
	// Zero sweeps on every call.
	SweepInterval time.Duration
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		AllowedProviders: []model.Provider{model.ProviderGuest, model.ProviderGoogle, model.ProviderApple},
		SweepInterval:    time.Minute,
	}
}

// Service resolves credentials into identities and sessions
type Service struct {
	storage  storage.Storage
	clock    clock.Clock
	hasher   *password.Hasher
	verifier IDTokenVerifier
	ledger   *token.Ledger
	throttle *throttle.Throttle
	logger   *slog.Logger

	allowed       map[model.Provider]bool
	sweepInterval time.Duration

	sweepMu   sync.Mutex
	lastSweep time.Time

	sessionLocks identityLocks
}

// New creates a new auth Service. verifier may be nil when no OAuth
// provider is configured.
func New(
	store storage.Storage,
	clk clock.Clock,
	hasher *password.Hasher,
	verifier IDTokenVerifier,
	ledger *token.Ledger,
	thr *throttle.Throttle,
	logger *slog.Logger,
	cfg Config,
) *Service {
	allowed := make(map[model.Provider]bool, len(cfg.AllowedProviders))
	for _, p := range cfg.AllowedProviders {
		allowed[p] = true
	}
	return &Service{
		storage:       store,
		clock:         clk,
		hasher:        hasher,
		verifier:      verifier,
		ledger:        ledger,
		throttle:      thr,
		logger:        logger.With(slog.String("component", "auth")),
		allowed:       allowed,
		sweepInterval: cfg.SweepInterval,
	}
}

// Login authenticates a guest or OAuth caller and starts a fresh session.
// Any tokens the identity already held are revoked.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	if !s.throttle.Allow(req.ClientKey) {
		s.logger.Warn("login throttled", slog.String("client", req.ClientKey))
		return nil, model.ErrRateLimited
	}
	if !s.allowed[req.Provider] {
		return nil, model.ErrUnsupportedProvider
	}

	var (
		identity *model.Identity
		err      error
	)
	switch {
	case req.Provider == model.ProviderGuest:
		identity, err = s.loginGuest(ctx, req)
	case req.Provider.IsOAuth():
		identity, err = s.loginOAuth(ctx, req)
	default:
		err = model.ErrUnsupportedProvider
	}
	if err != nil {
		if errors.Is(err, model.ErrInvalidCredentials) || errors.Is(err, model.ErrInvalidToken) {
			s.throttle.RecordFailure(req.ClientKey)
			s.logger.Info("login failed",
				slog.String("provider", string(req.Provider)),
				slog.String("client", req.ClientKey),
				slog.String("error", err.Error()),
			)
		}
		return nil, err
	}

	return s.startSession(ctx, identity)
}

func (s *Service) loginGuest(ctx context.Context, req LoginRequest) (*model.Identity, error) {
	name, err := cleanDisplayName(req.DisplayName)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("%w: display name is required", model.ErrInvalidRequest)
	}

	existing, err := s.storage.GetGuestIdentityByName(ctx, name)
	if errors.Is(err, model.ErrIdentityNotFound) {
		created, createErr := s.createGuest(ctx, name, req.Password)
		if !errors.Is(createErr, model.ErrDuplicateIdentity) {
			return created, createErr
		}
		// Lost a creation race; the winner's identity is now there
		existing, err = s.storage.GetGuestIdentityByName(ctx, name)
	}
	if err != nil {
		return nil, err
	}
	return s.authenticateGuest(ctx, existing, req.Password)
}

func (s *Service) createGuest(ctx context.Context, name, plain string) (*model.Identity, error) {
	now := s.clock.Now()
	identity := &model.Identity{
		ID:          newIdentityID(),
		Provider:    model.ProviderGuest,
		Role:        model.RoleGuest,
		DisplayName: name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if plain != "" {
		cred, err := s.hasher.Hash(plain)
		if err != nil {
			return nil, err
		}
		identity.Password = &cred
	}
	if err := s.storage.CreateIdentity(ctx, identity); err != nil {
		return nil, err
	}
	s.logger.Info("guest identity created", slog.String("identity", string(identity.ID)))
	return identity, nil
}

// authenticateGuest checks the password of an existing guest identity. A
// passwordless identity adopts the supplied password, and legacy or cheap
// hashes are upgraded after a successful check.
func (s *Service) authenticateGuest(ctx context.Context, identity *model.Identity, plain string) (*model.Identity, error) {
	if !identity.HasPassword() {
		if plain == "" {
			return identity, nil
		}
		if err := s.setPassword(ctx, identity, plain); err != nil {
			return nil, err
		}
		return identity, nil
	}

	if !s.hasher.Verify(plain, *identity.Password) {
		return nil, model.ErrInvalidCredentials
	}
	if s.hasher.NeedsRehash(*identity.Password) {
		if err := s.setPassword(ctx, identity, plain); err != nil {
			// The password was correct; a failed upgrade is retried next login
			s.logger.Warn("password rehash failed",
				slog.String("identity", string(identity.ID)),
				slog.String("error", err.Error()),
			)
		}
	}
	return identity, nil
}

func (s *Service) setPassword(ctx context.Context, identity *model.Identity, plain string) error {
	cred, err := s.hasher.Hash(plain)
	if err != nil {
		return err
	}
	updated := *identity
	updated.Password = &cred
	updated.UpdatedAt = s.clock.Now()
	if err := s.storage.UpdateIdentity(ctx, &updated); err != nil {
		return err
	}
	*identity = updated
	return nil
}

func (s *Service) loginOAuth(ctx context.Context, req LoginRequest) (*model.Identity, error) {
	if s.verifier == nil {
		return nil, model.ErrUnsupportedProvider
	}
	if strings.TrimSpace(req.IDToken) == "" {
		return nil, fmt.Errorf("%w: id token is required", model.ErrInvalidRequest)
	}
	requested, err := cleanDisplayName(req.DisplayName)
	if err != nil {
		return nil, err
	}

	claims, err := s.verifier.Verify(ctx, req.Provider, req.IDToken)
	if err != nil {
		return nil, err
	}

	existing, err := s.storage.GetIdentityBySubject(ctx, req.Provider, claims.Subject)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, model.ErrIdentityNotFound) {
		return nil, err
	}

	name := requested
	if name == "" {
		name = truncate(claims.DisplayName(), model.MaxDisplayNameLength)
	}
	if name == "" {
		name = req.Provider.Title()
	}

	now := s.clock.Now()
	identity := &model.Identity{
		ID:          newIdentityID(),
		Provider:    req.Provider,
		Role:        model.RoleUser,
		DisplayName: name,
		Subject:     claims.Subject,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.storage.CreateIdentity(ctx, identity)
	if errors.Is(err, model.ErrDuplicateIdentity) {
		return s.storage.GetIdentityBySubject(ctx, req.Provider, claims.Subject)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("oauth identity created",
		slog.String("identity", string(identity.ID)),
		slog.String("provider", string(req.Provider)),
	)
	return identity, nil
}

func (s *Service) startSession(ctx context.Context, identity *model.Identity) (*Session, error) {
	// Two logins for one identity must not both keep a live token
	unlock := s.sessionLocks.lock(identity.ID)
	defer unlock()

	if err := s.ledger.RevokeAll(ctx, identity.ID); err != nil {
		return nil, fmt.Errorf("revoke previous sessions: %w", err)
	}
	tok, err := s.ledger.Issue(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Identity: identity, Token: tok}, nil
}

// Resolve returns the identity behind a bearer token
func (s *Service) Resolve(ctx context.Context, tokenValue string) (*model.Identity, error) {
	s.maybeSweep(ctx)

	tok, err := s.ledger.Resolve(ctx, tokenValue)
	if err != nil {
		return nil, err
	}
	identity, err := s.storage.GetIdentity(ctx, tok.IdentityID)
	if errors.Is(err, model.ErrIdentityNotFound) {
		return nil, model.ErrUnauthenticated
	}
	return identity, err
}

// maybeSweep deletes expired tokens. Failures are logged and ignored.
func (s *Service) maybeSweep(ctx context.Context) {
	now := s.clock.Now()
	s.sweepMu.Lock()
	if s.sweepInterval > 0 && now.Sub(s.lastSweep) < s.sweepInterval {
		s.sweepMu.Unlock()
		return
	}
	s.lastSweep = now
	s.sweepMu.Unlock()

	if _, err := s.ledger.SweepExpired(ctx); err != nil {
		s.logger.Warn("token sweep failed", slog.String("error", err.Error()))
	}
}

// Logout revokes a token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, tokenValue string) error {
	return s.ledger.Revoke(ctx, tokenValue)
}

// ChangePassword replaces a guest identity's password and ends all of its
// sessions. Identities without a password may set one without current.
// Wrong current passwords count towards the throttle under the identity's key.
func (s *Service) ChangePassword(ctx context.Context, id model.IdentityID, current, next string) (*model.Identity, error) {
	identity, err := s.storage.GetIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity.Provider != model.ProviderGuest {
		return nil, model.ErrUnsupportedProvider
	}
	if identity.HasPassword() {
		key := passwordThrottleKey(id)
		if !s.throttle.Allow(key) {
			s.logger.Warn("password change throttled", slog.String("identity", string(id)))
			return nil, model.ErrRateLimited
		}
		if !s.hasher.Verify(current, *identity.Password) {
			s.throttle.RecordFailure(key)
			s.logger.Info("password change rejected", slog.String("identity", string(id)))
			return nil, model.ErrInvalidCredentials
		}
	}
	if next == "" {
		return nil, fmt.Errorf("%w: new password is required", model.ErrInvalidRequest)
	}

	if err := s.setPassword(ctx, identity, next); err != nil {
		return nil, err
	}
	if err := s.ledger.RevokeAll(ctx, identity.ID); err != nil {
		return nil, fmt.Errorf("revoke sessions: %w", err)
	}
	s.logger.Info("password changed", slog.String("identity", string(identity.ID)))
	return identity, nil
}

func passwordThrottleKey(id model.IdentityID) string {
	return "password:" + string(id)
}

// Admin operations

// ListIdentities returns a page of identities, oldest first
func (s *Service) ListIdentities(ctx context.Context, page model.Page) ([]*model.Identity, error) {
	return s.storage.ListIdentities(ctx, page)
}

// GetIdentity looks up one identity
func (s *Service) GetIdentity(ctx context.Context, id model.IdentityID) (*model.Identity, error) {
	return s.storage.GetIdentity(ctx, id)
}

// SetRole changes an identity's role
func (s *Service) SetRole(ctx context.Context, id model.IdentityID, role model.Role) (*model.Identity, error) {
	if _, err := model.ParseRole(string(role)); err != nil {
		return nil, err
	}
	identity, err := s.storage.GetIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity.Role == role {
		return identity, nil
	}
	identity.Role = role
	identity.UpdatedAt = s.clock.Now()
	if err := s.storage.UpdateIdentity(ctx, identity); err != nil {
		return nil, err
	}
	s.logger.Info("role changed", slog.String("identity", string(id)), slog.String("role", string(role)))
	return identity, nil
}

// DeleteIdentity removes an identity with its sessions, memberships and
// hosted rooms
func (s *Service) DeleteIdentity(ctx context.Context, id model.IdentityID) error {
	if err := s.storage.DeleteIdentity(ctx, id); err != nil {
		return err
	}
	s.logger.Info("identity deleted", slog.String("identity", string(id)))
	return nil
}

// EnsureAdmin makes sure a guest-provider admin with the given name exists
// and that plain is its password. Used to bootstrap a fresh deployment.
func (s *Service) EnsureAdmin(ctx context.Context, name, plain string) (*model.Identity, error) {
	name, err := cleanDisplayName(name)
	if err != nil {
		return nil, err
	}
	if name == "" || plain == "" {
		return nil, fmt.Errorf("%w: admin name and password are required", model.ErrInvalidRequest)
	}

	identity, err := s.storage.GetGuestIdentityByName(ctx, name)
	if errors.Is(err, model.ErrIdentityNotFound) {
		identity, err = s.createGuest(ctx, name, plain)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	changed := false
	if identity.Role != model.RoleAdmin {
		identity.Role = model.RoleAdmin
		changed = true
	}
	if !identity.HasPassword() || !s.hasher.Verify(plain, *identity.Password) || s.hasher.NeedsRehash(*identity.Password) {
		cred, err := s.hasher.Hash(plain)
		if err != nil {
			return nil, err
		}
		identity.Password = &cred
		changed = true
	}
	if changed {
		identity.UpdatedAt = s.clock.Now()
		if err := s.storage.UpdateIdentity(ctx, identity); err != nil {
			return nil, err
		}
		s.logger.Info("admin identity ensured", slog.String("identity", string(identity.ID)))
	}
	return identity, nil
}

func cleanDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) > model.MaxDisplayNameLength {
		return "", fmt.Errorf("%w: display name is too long", model.ErrInvalidRequest)
	}
	return name, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back off to a rune boundary
	for n > 0 && (s[n]&0xC0) == 0x80 {
		n--
	}
	return s[:n]
}

func newIdentityID() model.IdentityID {
	return model.IdentityID(uuid.NewString())
}

// identityLocks is a set of per-identity mutexes that are dropped once no
// caller holds or waits for them
type identityLocks struct {
	mu    sync.Mutex
	locks map[model.IdentityID]*identityLock
}

type identityLock struct {
	mu      sync.Mutex
	waiters int
}

func (l *identityLocks) lock(id model.IdentityID) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[model.IdentityID]*identityLock)
	}
	entry, ok := l.locks[id]
	if !ok {
		entry = &identityLock{}
		l.locks[id] = entry
	}
	entry.waiters++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.waiters--
		if entry.waiters == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
