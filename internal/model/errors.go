package model

import "errors"

// Common errors used across the application
var (
	// Authentication errors
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidToken        = errors.New("invalid identity token")
	ErrUnsupportedProvider = errors.New("unsupported identity provider")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
	ErrRateLimited         = errors.New("too many failed attempts")

	// Authorization and input errors
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidRequest = errors.New("invalid request")

	// Identity errors
	ErrIdentityNotFound  = errors.New("identity not found")
	ErrDuplicateIdentity = errors.New("identity already exists")

	// Token errors
	ErrTokenNotFound = errors.New("session token not found")

	// Room errors
	ErrNotFound       = errors.New("room not found")
	ErrNotJoinable    = errors.New("room is not joinable")
	ErrRoomFull       = errors.New("room is full for players")
	ErrSpectatorsFull = errors.New("room is full for spectators")
	ErrRoomCodeTaken  = errors.New("room code already in use")
)

// IsRetryable reports whether retrying the same request may succeed
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}
