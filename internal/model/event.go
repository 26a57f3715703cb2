package model

import "time"

// RoomEventType names a change pushed to room watchers
type RoomEventType string

const (
	EventMemberJoined RoomEventType = "member_joined"
	EventRoomArchived RoomEventType = "room_archived"
)

// RoomEvent describes a membership or lifecycle change in a room
type RoomEvent struct {
	Type           RoomEventType
	RoomCode       RoomCode
	IdentityID     IdentityID // empty for room_archived
	Role           MemberRole // empty for room_archived
	PlayerCount    int
	SpectatorCount int
	Status         RoomStatus
	At             time.Time
}
