package model

// Role is the system-wide tier of an identity
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// ParseRole converts a wire value into a Role
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleUser, RoleGuest:
		return r, nil
	default:
		return "", ErrInvalidRequest
	}
}

// CanCreateRooms reports whether the role may host rooms
func (r Role) CanCreateRooms() bool {
	return r == RoleAdmin || r == RoleUser
}

// CanListRooms reports whether the role may browse rooms
func (r Role) CanListRooms() bool {
	return r == RoleAdmin || r == RoleUser
}

// SeesPrivateRooms reports whether private rooms are visible without membership
func (r Role) SeesPrivateRooms() bool {
	return r == RoleAdmin
}

// CanAdminister reports whether the role may use admin operations
func (r Role) CanAdminister() bool {
	return r == RoleAdmin
}
