package response

import (
	"time"

	"github.com/mcoot/cardroom/internal/model"
	"github.com/mcoot/cardroom/internal/services/auth"
)

// Identity represents an identity in API responses
type Identity struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	Role        string    `json:"role"`
	DisplayName string    `json:"display_name"`
	HasPassword bool      `json:"has_password"`
	CreatedAt   time.Time `json:"created_at"`
}

// IdentityFromModel converts a model.Identity to a response Identity
func IdentityFromModel(i *model.Identity) Identity {
	return Identity{
		ID:          string(i.ID),
		Provider:    string(i.Provider),
		Role:        string(i.Role),
		DisplayName: i.DisplayName,
		HasPassword: i.HasPassword(),
		CreatedAt:   i.CreatedAt,
	}
}

// IdentityList is the response for identity listings
type IdentityList struct {
	Identities []Identity `json:"identities"`
}

// IdentityListFromModels converts a page of identities
func IdentityListFromModels(identities []*model.Identity) IdentityList {
	out := IdentityList{Identities: make([]Identity, 0, len(identities))}
	for _, i := range identities {
		out.Identities = append(out.Identities, IdentityFromModel(i))
	}
	return out
}

// AuthResponse is the response for authentication endpoints
type AuthResponse struct {
	Identity     Identity  `json:"identity"`
	SessionToken string    `json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// AuthResponseFromSession creates an AuthResponse from a session
func AuthResponseFromSession(s *auth.Session) AuthResponse {
	return AuthResponse{
		Identity:     IdentityFromModel(s.Identity),
		SessionToken: s.Token.Value,
		ExpiresAt:    s.Token.ExpiresAt,
	}
}

// Member represents a room membership
type Member struct {
	IdentityID string    `json:"identity_id"`
	Role       string    `json:"role"`
	JoinedAt   time.Time `json:"joined_at"`
}

// Room represents a room as seen by the caller
type Room struct {
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	HostID         string    `json:"host_id"`
	MaxPlayers     int       `json:"max_players"`
	MaxSpectators  int       `json:"max_spectators"`
	Visibility     string    `json:"visibility"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	PlayerCount    int       `json:"player_count"`
	SpectatorCount int       `json:"spectator_count"`
	IsJoined       bool      `json:"is_joined"`
	Joinable       bool      `json:"joinable"`
	Members        []Member  `json:"members,omitempty"`
}

// RoomFromView converts a model.RoomView to a response Room
func RoomFromView(v *model.RoomView) Room {
	room := Room{
		Code:           string(v.Room.Code),
		Name:           v.Room.Name,
		HostID:         string(v.Room.HostID),
		MaxPlayers:     v.Room.MaxPlayers,
		MaxSpectators:  v.Room.MaxSpectators,
		Visibility:     string(v.Room.Visibility),
		Status:         string(v.Room.Status),
		CreatedAt:      v.Room.CreatedAt,
		PlayerCount:    v.PlayerCount,
		SpectatorCount: v.SpectatorCount,
		IsJoined:       v.IsJoined,
		Joinable:       v.Joinable,
	}
	for _, m := range v.Members {
		room.Members = append(room.Members, Member{
			IdentityID: string(m.IdentityID),
			Role:       string(m.Role),
			JoinedAt:   m.JoinedAt,
		})
	}
	return room
}

// RoomList is the response for room listings
type RoomList struct {
	Rooms []Room `json:"rooms"`
}

// RoomListFromViews converts a page of room views
func RoomListFromViews(views []*model.RoomView) RoomList {
	out := RoomList{Rooms: make([]Room, 0, len(views))}
	for _, v := range views {
		out.Rooms = append(out.Rooms, RoomFromView(v))
	}
	return out
}

// Health is the response for the health check
type Health struct {
	Status string `json:"status"`
}
