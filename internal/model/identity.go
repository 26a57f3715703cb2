package model

import (
	"strings"
	"time"
)

// MaxDisplayNameLength bounds display names in bytes
const MaxDisplayNameLength = 64

// IdentityID uniquely identifies an identity across the system
type IdentityID string

// Provider is the authority that vouched for an identity
type Provider string

const (
	ProviderGuest  Provider = "guest"  // first-party display name (+ optional password)
	ProviderGoogle Provider = "google" // OAuth ID token
	ProviderApple  Provider = "apple"  // OAuth ID token
)

// ParseProvider converts a wire value into a Provider
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderGuest, ProviderGoogle, ProviderApple:
		return p, nil
	default:
		return "", ErrUnsupportedProvider
	}
}

// IsOAuth reports whether logins for this provider carry an ID token
func (p Provider) IsOAuth() bool {
	return p == ProviderGoogle || p == ProviderApple
}

// Title returns the provider name as shown to people
func (p Provider) Title() string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

// PasswordAlgorithm tags the format of a stored password hash
type PasswordAlgorithm string

const (
	AlgorithmBcrypt PasswordAlgorithm = "bcrypt"
	// AlgorithmSHA256 is the legacy unsalted hex digest. Verified, never produced.
	AlgorithmSHA256 PasswordAlgorithm = "sha256"
)

// PasswordCredential is a self-describing password hash
type PasswordCredential struct {
	Algorithm PasswordAlgorithm
	Hash      string
}

// Identity is a person (or guest) known to the system
type Identity struct {
	ID          IdentityID
	Provider    Provider
	Role        Role
	DisplayName string
	Password    *PasswordCredential // nil when no password has been set
	Subject     string              // verified OAuth subject, empty for guests
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasPassword reports whether a password credential is stored
func (i *Identity) HasPassword() bool {
	return i.Password != nil && i.Password.Hash != ""
}

// Page selects a window of a listing
type Page struct {
	Limit  int
	Offset int
}

// Clamp fills a missing limit with defaultLimit and bounds it to
// [1, maxLimit]. Negative offsets become zero.
func (p Page) Clamp(defaultLimit, maxLimit int) Page {
	if p.Limit == 0 {
		p.Limit = defaultLimit
	}
	p.Limit = max(1, min(p.Limit, maxLimit))
	p.Offset = max(0, p.Offset)
	return p
}
