// Package password hashes and verifies first-party credentials. New hashes
// are always bcrypt; unsalted SHA-256 digests from older accounts still
// verify so they can be upgraded on the next successful login.
package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/cardroom/internal/model"
)

// DefaultCost is the bcrypt work factor used when none is configured
const DefaultCost = 12

// ErrEmptyPassword is returned when hashing an empty plaintext
var ErrEmptyPassword = errors.New("password must not be empty")

// Hasher produces and checks password credentials
type Hasher struct {
	cost int
}

// New creates a Hasher. Costs outside bcrypt's range fall back to DefaultCost.
func New(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Cost returns the configured bcrypt work factor
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns a bcrypt credential for plain
func (h *Hasher) Hash(plain string) (model.PasswordCredential, error) {
	if plain == "" {
		return model.PasswordCredential{}, ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return model.PasswordCredential{}, fmt.Errorf("hash password: %w", err)
	}
	return model.PasswordCredential{Algorithm: model.AlgorithmBcrypt, Hash: string(hash)}, nil
}

// Verify reports whether plain matches cred. A bcrypt credential is only ever
// checked with bcrypt, never against the legacy digest.
func (h *Hasher) Verify(plain string, cred model.PasswordCredential) bool {
	if cred.Hash == "" {
		return false
	}
	if isBcrypt(cred) {
		return bcrypt.CompareHashAndPassword([]byte(cred.Hash), []byte(plain)) == nil
	}
	if cred.Algorithm != model.AlgorithmSHA256 && cred.Algorithm != "" {
		return false
	}
	candidate := LegacyDigest(plain)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(cred.Hash)) == 1
}

// NeedsRehash reports whether cred should be replaced by a fresh Hash
func (h *Hasher) NeedsRehash(cred model.PasswordCredential) bool {
	if !isBcrypt(cred) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(cred.Hash))
	if err != nil {
		return true
	}
	return cost < h.cost
}

// LegacyDigest is the unsalted hex SHA-256 format of pre-bcrypt accounts
func LegacyDigest(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// LegacyCredential wraps a legacy digest, for importing old accounts
func LegacyCredential(plain string) model.PasswordCredential {
	return model.PasswordCredential{Algorithm: model.AlgorithmSHA256, Hash: LegacyDigest(plain)}
}

func isBcrypt(cred model.PasswordCredential) bool {
	if cred.Algorithm == model.AlgorithmBcrypt {
		return true
	}
	// Untagged hashes in bcrypt's modular crypt format
	_, err := bcrypt.Cost([]byte(cred.Hash))
	return cred.Algorithm == "" && err == nil
}
