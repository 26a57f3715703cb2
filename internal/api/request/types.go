package request

// LoginRequest is the request body for logging in with any provider
type LoginRequest struct {
	Provider    string `json:"provider"`
	IDToken     string `json:"id_token,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Password    string `json:"password,omitempty"`
}

// ChangePasswordRequest is the request body for changing a guest password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// CreateRoomRequest is the request body for creating a room
type CreateRoomRequest struct {
	Name          string `json:"name"`
	MaxPlayers    int    `json:"max_players,omitempty"`
	MaxSpectators *int   `json:"max_spectators,omitempty"`
	Visibility    string `json:"visibility,omitempty"`
}

// JoinRoomRequest is the optional request body for joining a room
type JoinRoomRequest struct {
	Spectator bool `json:"spectator"`
}

// SetRoleRequest is the request body for changing an identity's role
type SetRoleRequest struct {
	Role string `json:"role"`
}
