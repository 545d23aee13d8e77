package domain

import "time"

// Role of a member within its room. Exactly one member per non-closed room
// holds RoleAdmin; promotion transfers the role, it never adds a second admin.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleParticipant Role = "participant"
)

// ConnectionState tracks transport liveness. A detached member keeps its
// registry entry so the same memberId can rejoin later.
type ConnectionState string

const (
	ConnAttached ConnectionState = "attached"
	ConnDetached ConnectionState = "detached"
)

// Member is a stable participant identity within one room. Its ID is an
// opaque capability token: the client presents it verbatim on rejoin, and it
// is never reissued to anyone else.
type Member struct {
	ID              string          `json:"id"`
	RoomID          string          `json:"roomId"`
	DisplayName     string          `json:"displayName"`
	AvatarGlyph     string          `json:"avatarGlyph"`
	Role            Role            `json:"role"`
	ConnectionState ConnectionState `json:"connectionState"`
	JoinedAt        time.Time       `json:"joinedAt"`
}

func (m *Member) IsAdmin() bool { return m.Role == RoleAdmin }
