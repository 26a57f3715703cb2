package model

import "time"

// SessionToken is an opaque bearer credential
type SessionToken struct {
	Value      string
	IdentityID IdentityID
	IssuedAt   time.Time
	ExpiresAt  time.Time
	RevokedAt  *time.Time
}

// IsExpired reports whether the token has passed its expiry
func (t *SessionToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// IsValid reports whether the token may still authenticate requests
func (t *SessionToken) IsValid(now time.Time) bool {
	return t.RevokedAt == nil && !t.IsExpired(now)
}
