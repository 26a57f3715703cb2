package factory

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/cardroom/internal/dependencies/mocks"
	"github.com/mcoot/cardroom/internal/model"
	"github.com/mcoot/cardroom/internal/services/auth"
	"github.com/mcoot/cardroom/internal/services/oauth"
	"github.com/mcoot/cardroom/internal/storage/memory"
	"github.com/mcoot/cardroom/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock    *mocks.MockClock
	MockRandom   *mocks.MockRandom
	StubVerifier *StubVerifier
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	stub := NewStubVerifier()

	app := newWithDependencies(store, mockClock, mockRandom, stub, Config{
		BcryptCost: bcrypt.MinCost,
		AuthConfig: auth.DefaultConfig(),
	}, testutil.NopLogger())

	return &TestApp{
		App:          app,
		MockClock:    mockClock,
		MockRandom:   mockRandom,
		StubVerifier: stub,
	}
}

// StubVerifier accepts ID tokens of the form "valid:<subject>" or
// "valid:<subject>:<name>" and rejects everything else
type StubVerifier struct {
	mu          sync.Mutex
	unavailable bool
}

// NewStubVerifier creates a StubVerifier
func NewStubVerifier() *StubVerifier {
	return &StubVerifier{}
}

// SetUnavailable makes every Verify call fail as a provider outage
func (v *StubVerifier) SetUnavailable(unavailable bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.unavailable = unavailable
}

// Verify implements auth.IDTokenVerifier
func (v *StubVerifier) Verify(ctx context.Context, provider model.Provider, idToken string) (*oauth.Claims, error) {
	v.mu.Lock()
	unavailable := v.unavailable
	v.mu.Unlock()
	if unavailable {
		return nil, model.ErrProviderUnavailable
	}

	parts := strings.SplitN(idToken, ":", 3)
	if len(parts) < 2 || parts[0] != "valid" || parts[1] == "" {
		return nil, model.ErrInvalidToken
	}
	claims := &oauth.Claims{Provider: provider, Subject: parts[1]}
	if len(parts) == 3 {
		claims.Name = parts[2]
	}
	return claims, nil
}
