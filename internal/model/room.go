package model

import (
	"strings"
	"time"
)

// RoomCode is a short human-shareable identifier for joining rooms
type RoomCode string

// Normalize uppercases and trims a code typed by a person
func (c RoomCode) Normalize() RoomCode {
	return RoomCode(strings.ToUpper(strings.TrimSpace(string(c))))
}

// Visibility controls who can discover a room
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// RoomStatus is the lifecycle state of a room
type RoomStatus string

const (
	RoomStatusActive   RoomStatus = "active"
	RoomStatusArchived RoomStatus = "archived" // terminal
)

// MemberRole distinguishes players from spectators
type MemberRole string

const (
	RolePlayer    MemberRole = "player"
	RoleSpectator MemberRole = "spectator"
)

// Room capacity bounds
const (
	MinPlayers           = 2
	MaxPlayersLimit      = 12
	DefaultMaxPlayers    = 4
	MaxSpectatorsLimit   = 50
	DefaultMaxSpectators = 0
	MaxRoomNameLength    = 80
)

// Room is a table that identities join as players or spectators
type Room struct {
	Code          RoomCode
	Name          string
	HostID        IdentityID
	MaxPlayers    int
	MaxSpectators int
	Visibility    Visibility
	Status        RoomStatus
	CreatedAt     time.Time
}

// IsActive reports whether the room still accepts joins
func (r *Room) IsActive() bool {
	return r.Status == RoomStatusActive
}

// Membership records an identity's seat in a room. Immutable once created.
type Membership struct {
	RoomCode   RoomCode
	IdentityID IdentityID
	Role       MemberRole
	JoinedAt   time.Time
}

// CountMembers returns the number of players and spectators
func CountMembers(members []Membership) (players, spectators int) {
	for _, m := range members {
		switch m.Role {
		case RolePlayer:
			players++
		case RoleSpectator:
			spectators++
		}
	}
	return players, spectators
}

// FindMember returns the membership for the identity, or nil
func FindMember(members []Membership, id IdentityID) *Membership {
	for i := range members {
		if members[i].IdentityID == id {
			return &members[i]
		}
	}
	return nil
}

// RoomSpec holds the caller-chosen settings for a new room
type RoomSpec struct {
	Name          string
	MaxPlayers    int // 0 means DefaultMaxPlayers
	MaxSpectators *int
	Visibility    Visibility // empty means private
}

// Normalized fills defaults and validates the room settings
func (s RoomSpec) Normalized() (RoomSpec, error) {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" || len(s.Name) > MaxRoomNameLength {
		return s, ErrInvalidRequest
	}
	if s.MaxPlayers == 0 {
		s.MaxPlayers = DefaultMaxPlayers
	}
	if s.MaxPlayers < MinPlayers || s.MaxPlayers > MaxPlayersLimit {
		return s, ErrInvalidRequest
	}
	if s.MaxSpectators == nil {
		n := DefaultMaxSpectators
		s.MaxSpectators = &n
	}
	if *s.MaxSpectators < 0 || *s.MaxSpectators > MaxSpectatorsLimit {
		return s, ErrInvalidRequest
	}
	switch s.Visibility {
	case "":
		s.Visibility = VisibilityPrivate
	case VisibilityPublic, VisibilityPrivate:
	default:
		return s, ErrInvalidRequest
	}
	return s, nil
}

// RoomView is a room as seen by a particular viewer
type RoomView struct {
	Room           Room
	PlayerCount    int
	SpectatorCount int
	IsJoined       bool
	Joinable       bool
	Members        []Membership // populated for members and admins only
}

// RoomSort orders room listings
type RoomSort string

const (
	SortNewest RoomSort = "newest"
	SortOldest RoomSort = "oldest"
	SortName   RoomSort = "name"
)

// ParseRoomSort converts a wire value into a RoomSort, defaulting to newest
func ParseRoomSort(s string) (RoomSort, error) {
	switch r := RoomSort(s); r {
	case "":
		return SortNewest, nil
	case SortNewest, SortOldest, SortName:
		return r, nil
	default:
		return "", ErrInvalidRequest
	}
}

// RoomFilter narrows a player-facing room listing
type RoomFilter struct {
	Page Page
}

// AdminRoomFilter narrows the unrestricted admin room listing
type AdminRoomFilter struct {
	Status RoomStatus // empty means any
	Sort   RoomSort
	Page   Page
}
