// Package protocol defines the wire format spoken over each websocket: typed
// call/reply pairs matched by a correlation id, and undirected room broadcast
// events. Payloads are validated at this boundary before they reach the
// services.
package protocol

import (
	"encoding/json"
	"fmt"

	"huddle/internal/domain"
)

// Directed calls (client -> server). Every call except the fire-and-forget
// ones gets exactly one reply carrying the call's cid.
const (
	CallRoomJoin      = "room:join"
	CallRoomRejoin    = "room:rejoin" // fire-and-forget; answered via event
	CallRoomStart     = "room:start"
	CallRoomClose     = "room:close"
	CallMessageSend   = "message:send"
	CallMemberPromote = "member:promote"
	CallMemberKick    = "member:kick"
	CallTypingStart   = "typing:start" // fire-and-forget
	CallTypingStop    = "typing:stop"  // fire-and-forget
	CallWhoami        = "whoami"
)

// Server -> client event types.
const (
	TypeReply           = "reply"
	EventMemberJoined   = "member:joined"
	EventRoomMembers    = "room:members"
	EventRoomStarted    = "room:started"
	EventMessageRecv    = "message:received"
	EventMemberPromoted = "member:promoted"
	EventMemberKicked   = "member:kicked"
	EventRoomClosed     = "room:closed"
	EventTypingUpdate   = "typing:update"
	EventRoomJoined     = "room:joined"
	EventRejoinFailed   = "room:rejoin-failed"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Type    string          `json:"type"`
	CID     string          `json:"cid,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode builds a wire-ready envelope around the given payload.
func Encode(typ, cid string, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal %s payload: %w", typ, err)
		}
		raw = b
	}
	return json.Marshal(Envelope{Type: typ, CID: cid, Payload: raw})
}

// Decode parses an inbound frame into its envelope.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("protocol: malformed envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("protocol: envelope missing type")
	}
	return &env, nil
}

// Bind unmarshals the envelope payload into a typed request struct.
func (e *Envelope) Bind(dst interface{}) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("protocol: %s call missing payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("protocol: invalid %s payload: %w", e.Type, err)
	}
	return nil
}

// --- Call payloads ---

type JoinRequest struct {
	RoomID     string `json:"roomId"`
	UserName   string `json:"userName"`
	UserAvatar string `json:"userAvatar"`
	IsCreator  bool   `json:"isCreator,omitempty"`
}

type RejoinRequest struct {
	RoomID   string `json:"roomId"`
	MemberID string `json:"memberId"`
}

type SendRequest struct {
	Text        string `json:"text"`
	ClientMsgID string `json:"clientMsgId,omitempty"`
}

type PromoteRequest struct {
	MemberID string `json:"memberId"`
}

type KickRequest struct {
	MemberID string `json:"memberId"`
}

// --- Reply payloads ---

// Reply is the base success/failure shape. Error is set only when OK is false.
type Reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type JoinReply struct {
	Reply
	MemberID string `json:"memberId,omitempty"`
}

type SendReply struct {
	Reply
	Seq       int64 `json:"seq,omitempty"`
	Duplicate bool  `json:"duplicate,omitempty"`
}

type WhoamiReply struct {
	Reply
	ServerID string `json:"serverId"`
}

// --- Broadcast payloads ---

type MemberJoined struct {
	Member domain.Member `json:"member"`
}

type RoomMembers struct {
	Members []domain.Member `json:"members"`
}

type RoomStarted struct {
	Status string `json:"status"`
}

type MessageReceived struct {
	Seq            int64  `json:"seq"`
	AuthorMemberID string `json:"authorMemberId"`
	Content        string `json:"content"`
	SentAt         string `json:"sentAt"`
}

type MemberPromoted struct {
	MemberID string `json:"memberId"`
}

type MemberKicked struct {
	MemberID string `json:"memberId"`
}

type RoomClosed struct {
	Reason string `json:"reason"`
}

type TypingUpdate struct {
	TypingUsers []string `json:"typingUsers"`
}

// RoomJoined answers a rejoin, delivered to the caller only.
type RoomJoined struct {
	OK     bool             `json:"ok"`
	RoomID string           `json:"roomId"`
	Recent []domain.Message `json:"recent"`
}

type RejoinFailed struct {
	Reason string `json:"reason"`
}

// Frame is what travels over the store's pub/sub channel between instances.
// Target narrows delivery to a single member; Disconnect additionally tells
// the delivering instance to close that member's transport. SkipConn excludes
// one connection (the one that just superseded the old attachment).
type Frame struct {
	Event      json.RawMessage `json:"event"`
	Target     string          `json:"target,omitempty"`
	Disconnect bool            `json:"disconnect,omitempty"`
	SkipConn   string          `json:"skipConn,omitempty"`
}

// EncodeFrame wraps an already-encoded event for fanout.
func EncodeFrame(event []byte, target string, disconnect bool, skipConn string) ([]byte, error) {
	return json.Marshal(Frame{Event: event, Target: target, Disconnect: disconnect, SkipConn: skipConn})
}

// DecodeFrame parses a fanout frame received from the store.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("protocol: malformed fanout frame: %w", err)
	}
	return &f, nil
}
