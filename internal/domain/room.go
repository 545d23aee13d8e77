package domain

import "time"

// RoomStatus is the lifecycle state of a room. It only ever moves forward:
// waiting -> chatting -> closed.
type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomChatting RoomStatus = "chatting"
	RoomClosed   RoomStatus = "closed"
)

// Room is an ephemeral chat session. The record in the shared store is the
// only source of truth; no process instance keeps an authoritative copy.
type Room struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	AvatarGlyph   string     `json:"avatarGlyph"`
	Passphrase    string     `json:"passphrase"`
	ShortCode     string     `json:"shortCode"`
	Status        RoomStatus `json:"status"`
	AdminMemberID string     `json:"adminMemberId"`
	CreatedAt     time.Time  `json:"createdAt"`
	ExpiresAt     time.Time  `json:"expiresAt"`
}

// Closed reports whether the room has reached its terminal state.
func (r *Room) Closed() bool {
	return r.Status == RoomClosed
}
