// Package oauth verifies ID tokens issued by the external identity providers.
// It is not an OAuth client: the caller obtains the token, this package only
// checks its signature and claims.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mcoot/cardroom/internal/dependencies/clock"
	"github.com/mcoot/cardroom/internal/model"
)

// Well-known provider endpoints
const (
	GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
	AppleJWKSURL  = "https://appleid.apple.com/auth/keys"
)

// ProviderConfig describes how to verify one provider's tokens
type ProviderConfig struct {
	Issuers    []string
	JWKSURL    string
	Algorithms []string
}

// Config holds verifier settings
type Config struct {
	Providers map[model.Provider]ProviderConfig
	// Audience lists the accepted client IDs. Empty rejects every token
	// unless InsecureSkipAudience is set.
	Audience             []string
	InsecureSkipAudience bool
	// Leeway tolerates clock skew on exp/iat/nbf
	Leeway time.Duration
}

// GoogleProvider returns Google's issuer and key settings
func GoogleProvider(jwksURL string) ProviderConfig {
	if jwksURL == "" {
		jwksURL = GoogleJWKSURL
	}
	return ProviderConfig{
		Issuers:    []string{"https://accounts.google.com", "accounts.google.com"},
		JWKSURL:    jwksURL,
		Algorithms: []string{"RS256"},
	}
}

// AppleProvider returns Apple's issuer and key settings
func AppleProvider(jwksURL string) ProviderConfig {
	if jwksURL == "" {
		jwksURL = AppleJWKSURL
	}
	return ProviderConfig{
		Issuers:    []string{"https://appleid.apple.com"},
		JWKSURL:    jwksURL,
		Algorithms: []string{"RS256"},
	}
}

// Claims are the verified facts taken from an ID token
type Claims struct {
	Provider model.Provider
	Subject  string
	Issuer   string
	Email    string
	Name     string
}

// DisplayName picks the best human-readable name from the claims
func (c *Claims) DisplayName() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return strings.TrimSpace(c.Email)
}

type idTokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Verifier checks ID tokens against provider key sets
type Verifier struct {
	cfg    Config
	keys   *KeySetCache
	clock  clock.Clock
	logger *slog.Logger
}

// NewVerifier creates a Verifier. The key-set cache is owned by the caller.
func NewVerifier(cfg Config, keys *KeySetCache, clk clock.Clock, logger *slog.Logger) *Verifier {
	return &Verifier{
		cfg:    cfg,
		keys:   keys,
		clock:  clk,
		logger: logger.With(slog.String("component", "oauth")),
	}
}

// Supports reports whether provider has verification settings
func (v *Verifier) Supports(provider model.Provider) bool {
	_, ok := v.cfg.Providers[provider]
	return ok
}

// Verify checks idToken and returns its claims. Every token problem is
// ErrInvalidToken; key-set outages are ErrProviderUnavailable.
func (v *Verifier) Verify(ctx context.Context, provider model.Provider, idToken string) (*Claims, error) {
	pc, ok := v.cfg.Providers[provider]
	if !ok {
		return nil, model.ErrUnsupportedProvider
	}
	if strings.TrimSpace(idToken) == "" {
		return nil, fmt.Errorf("%w: empty token", model.ErrInvalidToken)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Reject malformed tokens before touching the network
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, &idTokenClaims{}); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}

	kf, err := v.keys.Keyfunc(pc.JWKSURL)
	if err != nil {
		return nil, err
	}

	algorithms := pc.Algorithms
	if len(algorithms) == 0 {
		algorithms = []string{"RS256"}
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods(algorithms),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.clock.Now),
		jwt.WithLeeway(v.cfg.Leeway),
	)

	claims := &idTokenClaims{}
	if _, err := parser.ParseWithClaims(idToken, claims, kf); err != nil {
		if errors.Is(err, model.ErrProviderUnavailable) {
			return nil, err
		}
		if isKeyLookupFailure(err) {
			v.logger.Info("id token signed by unknown key", slog.String("provider", string(provider)))
		}
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}

	if !slices.Contains(pc.Issuers, claims.Issuer) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", model.ErrInvalidToken, claims.Issuer)
	}
	if err := v.checkAudience(claims.Audience); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", model.ErrInvalidToken)
	}

	return &Claims{
		Provider: provider,
		Subject:  claims.Subject,
		Issuer:   claims.Issuer,
		Email:    claims.Email,
		Name:     claims.Name,
	}, nil
}

func (v *Verifier) checkAudience(aud jwt.ClaimStrings) error {
	if len(v.cfg.Audience) == 0 {
		if v.cfg.InsecureSkipAudience {
			return nil
		}
		return fmt.Errorf("%w: no audience configured", model.ErrInvalidToken)
	}
	for _, a := range aud {
		if slices.Contains(v.cfg.Audience, a) {
			return nil
		}
	}
	return fmt.Errorf("%w: audience not accepted", model.ErrInvalidToken)
}
