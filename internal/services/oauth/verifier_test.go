package oauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/cardroom/internal/dependencies/mocks"
	"github.com/mcoot/cardroom/internal/model"
	"github.com/mcoot/cardroom/internal/testutil"
)

const (
	testAudience = "cardroom-client"
	googleIssuer = "https://accounts.google.com"
)

// jwksServer serves a mutable set of RSA public keys
type jwksServer struct {
	mu      sync.Mutex
	keys    map[string]*rsa.PrivateKey
	failing bool
	fetches atomic.Int32
	server  *httptest.Server
}

func newJWKSServer() *jwksServer {
	js := &jwksServer{keys: make(map[string]*rsa.PrivateKey)}
	js.server = httptest.NewServer(http.HandlerFunc(js.serve))
	return js
}

func (js *jwksServer) serve(w http.ResponseWriter, r *http.Request) {
	js.fetches.Add(1)
	js.mu.Lock()
	defer js.mu.Unlock()
	if js.failing {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	keys := []map[string]string{}
	for kid, key := range js.keys {
		keys = append(keys, map[string]string{
			"kty": "RSA",
			"kid": kid,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"keys": keys})
}

func (js *jwksServer) addKey(kid string) *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	js.mu.Lock()
	js.keys[kid] = key
	js.mu.Unlock()
	return key
}

type VerifierSuite struct {
	suite.Suite
	jwks   *jwksServer
	key    *rsa.PrivateKey
	clock  *mocks.MockClock
	cache  *KeySetCache
	ctx    context.Context
	cfg    Config
	verify *Verifier
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.jwks = newJWKSServer()
	s.key = s.jwks.addKey("k1")
	s.clock = mocks.NewMockClock(time.Now().UTC())
	s.cache = NewKeySetCache(CacheConfig{RefreshInterval: time.Hour, HTTPTimeout: time.Second}, testutil.NopLogger())
	s.ctx = context.Background()
	s.cfg = Config{
		Providers: map[model.Provider]ProviderConfig{
			model.ProviderGoogle: GoogleProvider(s.jwks.server.URL),
		},
		Audience: []string{testAudience},
	}
	s.verify = NewVerifier(s.cfg, s.cache, s.clock, testutil.NopLogger())
}

func (s *VerifierSuite) TearDownTest() {
	s.cache.Close()
	s.jwks.server.Close()
}

func (s *VerifierSuite) claims() jwt.MapClaims {
	now := s.clock.Now()
	return jwt.MapClaims{
		"iss":   googleIssuer,
		"sub":   "google-sub-1",
		"aud":   testAudience,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
		"email": "alice@example.com",
		"name":  "Alice",
	}
}

func (s *VerifierSuite) sign(kid string, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	s.Require().NoError(err)
	return signed
}

func (s *VerifierSuite) TestValidToken() {
	claims, err := s.verify.Verify(s.ctx, model.ProviderGoogle, s.sign("k1", s.key, s.claims()))
	s.Require().NoError(err)

	s.Equal("google-sub-1", claims.Subject)
	s.Equal(googleIssuer, claims.Issuer)
	s.Equal("alice@example.com", claims.Email)
	s.Equal("Alice", claims.DisplayName())
	s.Equal(model.ProviderGoogle, claims.Provider)
}

func (s *VerifierSuite) TestAlternateGoogleIssuer() {
	c := s.claims()
	c["iss"] = "accounts.google.com"
	_, err := s.verify.Verify(s.ctx, model.ProviderGoogle, s.sign("k1", s.key, c))
	s.NoError(err)
}

func (s *VerifierSuite) TestKeySetIsCached() {
	token := s.sign("k1", s.key, s.claims())
	for range 3 {
		_, err := s.verify.Verify(s.ctx, model.ProviderGoogle, token)
		s.Require().NoError(err)
	}
	s.Equal(int32(1), s.jwks.fetches.Load())
}

func (s *VerifierSuite) TestWrongIssuer() {
	c := s.claims()
	c["iss"] = "https://evil.example.com"
	_, err := s.verify.Verify(s.ctx, model.ProviderGoogle, s.sign("k1", s.key, c))
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *VerifierSuite) TestUnknownKeyID() {
	stranger, err := rsa.GenerateKey(rand.Reader, 2048)
	s.Require().NoError(err)

	_, err = s.verify.Verify(s.ctx, model.ProviderGoogle, s.sign("nope", stranger, s.claims()))
	s.ErrorIs(err, model.ErrInvalidToken)
	s.False(model.IsRetryable(err))
}

func (s *VerifierSuite) TestRotatedKeyIsFetchedOnUnknownKeyID() {
	// Warm the cache with only k1
	_, err := s.verify.Verify(s.ctx, model.ProviderGoogle, s.sign("k1", s.key, s.claims()))
	s.Require().NoError(err)

	rotated := s.jwks.addKey("k2")
	claims, err := s.verify.Verify(s.ctx, model.ProviderGoogle, s.sign("k2", rotated, s.claims()))
	s.Require().NoError(err)
	s.Equal("google-sub-1", claims.Subject)
	s.GreaterOrEqual(s.jwks.fetches.Load(), int32(2))
}

func (s *VerifierSuite) TestBadSignature() {
	stranger, err := rsa.GenerateKey(rand.Reader, 2048)
	s.Require().NoError(err)

	_, err = s.verify.Verify(s.ctx, model.ProviderGoogle, s.sign("k1", stranger, s.claims()))
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *VerifierSuite) TestExpiredToken() {
	token := s.sign("k1", s.key, s.claims())
	s.clock.Advance(2 * time.Hour)

	_, err := s.verify.Verify(s.ctx, model.ProviderGoogle, token)
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *VerifierSuite) TestMissingExpiry() {
	c := s.claims()
	delete(c, "exp")
	_, err := s.verify.Verify(s.ctx, model.ProviderGoogle, s.sign("k1", s.key, c))
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *VerifierSuite) TestWrongAudience() {
	c := s.claims()
	c["aud"] = "someone-else"
	_, err := s.verify.Verify(s.ctx, model.ProviderGoogle, s.sign("k1", s.key, c))
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *VerifierSuite) TestAudienceFailsClosedWhenUnconfigured() {
	cfg := s.cfg
	cfg.Audience = nil
	verifier := NewVerifier(cfg, s.cache, s.clock, testutil.NopLogger())

	token := s.sign("k1", s.key, s.claims())
	_, err := verifier.Verify(s.ctx, model.ProviderGoogle, token)
	s.ErrorIs(err, model.ErrInvalidToken)

	cfg.InsecureSkipAudience = true
	verifier = NewVerifier(cfg, s.cache, s.clock, testutil.NopLogger())
	_, err = verifier.Verify(s.ctx, model.ProviderGoogle, token)
	s.NoError(err)
}

func (s *VerifierSuite) TestDisallowedAlgorithm() {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, s.claims())
	token.Header["kid"] = "k1"
	signed, err := token.SignedString([]byte("shared-secret"))
	s.Require().NoError(err)

	_, err = s.verify.Verify(s.ctx, model.ProviderGoogle, signed)
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *VerifierSuite) TestMalformedTokenSkipsFetch() {
	_, err := s.verify.Verify(s.ctx, model.ProviderGoogle, "not-a-jwt")
	s.ErrorIs(err, model.ErrInvalidToken)
	s.Equal(int32(0), s.jwks.fetches.Load())

	_, err = s.verify.Verify(s.ctx, model.ProviderGoogle, "  ")
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *VerifierSuite) TestMissingSubject() {
	c := s.claims()
	delete(c, "sub")
	_, err := s.verify.Verify(s.ctx, model.ProviderGoogle, s.sign("k1", s.key, c))
	s.ErrorIs(err, model.ErrInvalidToken)
}

func (s *VerifierSuite) TestProviderOutageIsRetryable() {
	s.jwks.mu.Lock()
	s.jwks.failing = true
	s.jwks.mu.Unlock()

	_, err := s.verify.Verify(s.ctx, model.ProviderGoogle, s.sign("k1", s.key, s.claims()))
	s.ErrorIs(err, model.ErrProviderUnavailable)
	s.True(model.IsRetryable(err))
}

func (s *VerifierSuite) TestUnconfiguredProvider() {
	s.False(s.verify.Supports(model.ProviderApple))
	_, err := s.verify.Verify(s.ctx, model.ProviderApple, s.sign("k1", s.key, s.claims()))
	s.ErrorIs(err, model.ErrUnsupportedProvider)
}

func (s *VerifierSuite) TestCanceledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.verify.Verify(ctx, model.ProviderGoogle, s.sign("k1", s.key, s.claims()))
	s.ErrorIs(err, context.Canceled)
}

func (s *VerifierSuite) TestDisplayNameFallsBackToEmail() {
	c := &Claims{Email: "bob@example.com"}
	s.Equal("bob@example.com", c.DisplayName())
	s.Equal("", (&Claims{}).DisplayName())
}

func (s *VerifierSuite) TestRefreshOutageOnUnknownKeyIsRetryable() {
	_, err := s.verify.Verify(s.ctx, model.ProviderGoogle, s.sign("k1", s.key, s.claims()))
	s.Require().NoError(err)

	rotated, err := rsa.GenerateKey(rand.Reader, 2048)
	s.Require().NoError(err)
	s.jwks.mu.Lock()
	s.jwks.failing = true
	s.jwks.mu.Unlock()

	_, err = s.verify.Verify(s.ctx, model.ProviderGoogle, s.sign("k2", rotated, s.claims()))
	s.ErrorIs(err, model.ErrProviderUnavailable)
	s.True(model.IsRetryable(err))
}

func (s *VerifierSuite) TestSlowFetchDoesNotBlockOtherKeySets() {
	release := make(chan struct{})
	var started atomic.Bool
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started.Store(true)
		<-release
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer slow.Close()
	defer close(release)

	_, err := s.cache.Keyfunc(s.jwks.server.URL)
	s.Require().NoError(err)

	done := make(chan error, 1)
	go func() {
		_, err := s.cache.Keyfunc(slow.URL)
		done <- err
	}()
	s.Require().Eventually(started.Load, time.Second, 5*time.Millisecond)

	begin := time.Now()
	kf, err := s.cache.Keyfunc(s.jwks.server.URL)
	s.Require().NoError(err)
	s.NotNil(kf)
	s.Less(time.Since(begin), 100*time.Millisecond)

	release <- struct{}{}
	s.ErrorIs(<-done, model.ErrProviderUnavailable)
}
