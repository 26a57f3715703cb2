package storage

import (
	"context"
	"time"

	"github.com/mcoot/cardroom/internal/model"
)

// JoinFunc decides whether an identity may join a room, given the room and its
// current members. It runs while the store holds the room exclusively, so the
// counts it sees cannot change before the returned membership is written.
// Returning a nil membership with a nil error writes nothing.
type JoinFunc func(room *model.Room, members []model.Membership) (*model.Membership, error)

// RoomQuery selects rooms for a listing
type RoomQuery struct {
	// Status restricts to one lifecycle state; empty means any
	Status model.RoomStatus
	// Viewer sees public rooms plus private rooms they are a member of.
	// Empty means anonymous (public rooms only).
	Viewer model.IdentityID
	// AllVisibility ignores visibility entirely (admin listings)
	AllVisibility bool
	Sort          model.RoomSort
	Limit         int
	Offset        int
}

// Storage defines the interface for data persistence
type Storage interface {
	// Identity operations

	// CreateIdentity inserts a new identity. It fails with
	// model.ErrDuplicateIdentity when a guest display name or an OAuth
	// (provider, subject) pair is already taken.
	CreateIdentity(ctx context.Context, identity *model.Identity) error
	GetIdentity(ctx context.Context, id model.IdentityID) (*model.Identity, error)
	GetGuestIdentityByName(ctx context.Context, displayName string) (*model.Identity, error)
	GetIdentityBySubject(ctx context.Context, provider model.Provider, subject string) (*model.Identity, error)
	UpdateIdentity(ctx context.Context, identity *model.Identity) error
	// DeleteIdentity removes the identity with its tokens, its memberships,
	// and every room it hosts.
	DeleteIdentity(ctx context.Context, id model.IdentityID) error
	ListIdentities(ctx context.Context, page model.Page) ([]*model.Identity, error)

	// Session token operations
	SaveToken(ctx context.Context, token *model.SessionToken) error
	GetToken(ctx context.Context, value string) (*model.SessionToken, error)
	// RevokeToken marks a token revoked. Unknown tokens are ignored.
	RevokeToken(ctx context.Context, value string, at time.Time) error
	RevokeTokensForIdentity(ctx context.Context, id model.IdentityID, at time.Time) error
	DeleteToken(ctx context.Context, value string) error
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int, error)

	// Room operations

	// CreateRoom inserts the room and the host's membership together. It
	// fails with model.ErrRoomCodeTaken if the code is already used.
	CreateRoom(ctx context.Context, room *model.Room, host model.Membership) error
	GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error)
	RoomExists(ctx context.Context, code model.RoomCode) (bool, error)
	SetRoomStatus(ctx context.Context, code model.RoomCode, status model.RoomStatus) error
	ListRooms(ctx context.Context, query RoomQuery) ([]*model.Room, error)

	// Membership operations
	GetMembers(ctx context.Context, code model.RoomCode) ([]model.Membership, error)
	// JoinRoom serializes fn against all other joins of the same room and
	// persists the membership it returns.
	JoinRoom(ctx context.Context, code model.RoomCode, fn JoinFunc) (*model.Membership, error)

	Close() error
}
