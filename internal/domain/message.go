package domain

import "time"

// Message is immutable once a sequence number has been assigned. Seq is
// room-scoped, starts at 1 and has no gaps; ordering is only meaningful
// within one room.
type Message struct {
	RoomID         string    `json:"roomId"`
	Seq            int64     `json:"seq"`
	AuthorMemberID string    `json:"authorMemberId"`
	Content        string    `json:"content"`
	ClientMsgID    string    `json:"clientMsgId,omitempty"`
	SentAt         time.Time `json:"sentAt"`
}
