package redis

import (
	"fmt"

	"github.com/mcoot/cardroom/internal/model"
)

// Key prefix for all cardroom data
const keyPrefix = "cardroom"

// identityKey returns the Redis key for an Identity
func identityKey(id model.IdentityID) string {
	return fmt.Sprintf("%s:identity:%s", keyPrefix, id)
}

// identitiesIndexKey returns the ZSET of identity IDs scored by creation time
func identitiesIndexKey() string {
	return fmt.Sprintf("%s:idx:identities", keyPrefix)
}

// guestNameIndexKey returns the Redis key for the guest display name -> identity index
func guestNameIndexKey(displayName string) string {
	return fmt.Sprintf("%s:idx:guest_name:%s", keyPrefix, displayName)
}

// subjectIndexKey returns the Redis key for the (provider, subject) -> identity index
func subjectIndexKey(provider model.Provider, subject string) string {
	return fmt.Sprintf("%s:idx:subject:%s:%s", keyPrefix, provider, subject)
}

// tokenKey returns the Redis key for a SessionToken
func tokenKey(value string) string {
	return fmt.Sprintf("%s:token:%s", keyPrefix, value)
}

// tokenExpiryIndexKey returns the ZSET of token values scored by expiry
func tokenExpiryIndexKey() string {
	return fmt.Sprintf("%s:idx:token_expiry", keyPrefix)
}

// identityTokensKey returns the SET of token values owned by an identity
func identityTokensKey(id model.IdentityID) string {
	return fmt.Sprintf("%s:idx:identity_tokens:%s", keyPrefix, id)
}

// roomKey returns the Redis key for a Room
func roomKey(code model.RoomCode) string {
	return fmt.Sprintf("%s:room:%s", keyPrefix, code)
}

// roomMembersKey returns the HASH of identity ID -> Membership for a room
func roomMembersKey(code model.RoomCode) string {
	return fmt.Sprintf("%s:room_members:%s", keyPrefix, code)
}

// roomsIndexKey returns the ZSET of room codes scored by creation time
func roomsIndexKey() string {
	return fmt.Sprintf("%s:idx:rooms", keyPrefix)
}

// identityRoomsKey returns the SET of room codes an identity is a member of
func identityRoomsKey(id model.IdentityID) string {
	return fmt.Sprintf("%s:idx:identity_rooms:%s", keyPrefix, id)
}

// hostedRoomsKey returns the SET of room codes an identity hosts
func hostedRoomsKey(id model.IdentityID) string {
	return fmt.Sprintf("%s:idx:hosted_rooms:%s", keyPrefix, id)
}
