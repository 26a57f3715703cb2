// Package token issues and checks opaque bearer tokens
package token

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mcoot/cardroom/internal/dependencies/clock"
	"github.com/mcoot/cardroom/internal/dependencies/random"
	"github.com/mcoot/cardroom/internal/model"
	"github.com/mcoot/cardroom/internal/storage"
)

// Entropy is the number of random bytes behind each token value
const Entropy = 32

// DefaultTTL is how long an issued token stays valid
const DefaultTTL = 12 * time.Hour

// Ledger persists session tokens in storage
type Ledger struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger
	ttl     time.Duration
}

// New creates a Ledger. A non-positive ttl uses DefaultTTL.
func New(store storage.Storage, clk clock.Clock, rnd random.Random, logger *slog.Logger, ttl time.Duration) *Ledger {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Ledger{
		storage: store,
		clock:   clk,
		random:  rnd,
		logger:  logger.With(slog.String("component", "tokens")),
		ttl:     ttl,
	}
}

// TTL returns the lifetime given to new tokens
func (l *Ledger) TTL() time.Duration {
	return l.ttl
}

// Issue creates and stores a fresh token for the identity
func (l *Ledger) Issue(ctx context.Context, id model.IdentityID) (*model.SessionToken, error) {
	b, err := l.random.Bytes(Entropy)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	now := l.clock.Now()
	token := &model.SessionToken{
		Value:      base64.RawURLEncoding.EncodeToString(b),
		IdentityID: id,
		IssuedAt:   now,
		ExpiresAt:  now.Add(l.ttl),
	}
	if err := l.storage.SaveToken(ctx, token); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	return token, nil
}

// Resolve returns the stored token if it is still valid. Unknown, revoked
// and expired tokens are all ErrUnauthenticated; expired rows are deleted.
func (l *Ledger) Resolve(ctx context.Context, value string) (*model.SessionToken, error) {
	if value == "" {
		return nil, model.ErrUnauthenticated
	}
	token, err := l.storage.GetToken(ctx, value)
	if errors.Is(err, model.ErrTokenNotFound) {
		return nil, model.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	now := l.clock.Now()
	if token.IsExpired(now) {
		if err := l.storage.DeleteToken(ctx, value); err != nil {
			l.logger.Warn("failed to delete expired token", slog.String("error", err.Error()))
		}
		return nil, model.ErrUnauthenticated
	}
	if !token.IsValid(now) {
		return nil, model.ErrUnauthenticated
	}
	return token, nil
}

// Revoke marks one token revoked. Unknown tokens are ignored.
func (l *Ledger) Revoke(ctx context.Context, value string) error {
	return l.storage.RevokeToken(ctx, value, l.clock.Now())
}

// RevokeAll revokes every token held by the identity
func (l *Ledger) RevokeAll(ctx context.Context, id model.IdentityID) error {
	return l.storage.RevokeTokensForIdentity(ctx, id, l.clock.Now())
}

// SweepExpired deletes every expired token and returns how many went
func (l *Ledger) SweepExpired(ctx context.Context) (int, error) {
	n, err := l.storage.DeleteExpiredTokens(ctx, l.clock.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		l.logger.Debug("swept expired tokens", slog.Int("count", n))
	}
	return n, nil
}
