package repository

import (
	"context"
	"time"

	"huddle/internal/domain"
)

// StateRepository is the narrow contract against the shared store: TTL get
// and set, atomic mutations, and publish. Every method that races on a shared
// invariant (sequence counter, admin uniqueness, terminal-state transitions)
// must be applied as one atomic step in the store, so that any number of
// process instances can call it concurrently for the same room.
type StateRepository interface {
	// === Room lifecycle ===

	// CreateRoom stores a new room with the given TTL and registers its
	// passphrase and short-code lookup keys. Returns ErrDuplicateEntry if
	// either alias is already taken.
	CreateRoom(ctx context.Context, room *domain.Room, ttl time.Duration) error

	// GetRoom loads the room record. ErrNotFound if unknown or expired.
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)

	// LookupRoomID resolves a passphrase or short code to a room id.
	LookupRoomID(ctx context.Context, alias string) (string, error)

	// StartRoom moves waiting -> chatting. The admin check and state check
	// happen inside the same atomic step as the transition.
	StartRoom(ctx context.Context, roomID, callerMemberID string) error

	// CloseRoom moves the room to its terminal state. With force set the
	// admin check is skipped (TTL reclamation path). Closing an already
	// closed room returns ErrRoomClosed.
	CloseRoom(ctx context.Context, roomID, callerMemberID string, force bool) error

	// CleanupRoom deletes every key belonging to the room and drops it from
	// the active index. Called after close has been fanned out.
	CleanupRoom(ctx context.Context, roomID string) error

	// TouchRoom refreshes the TTL on all of the room's keys.
	TouchRoom(ctx context.Context, roomID string, ttl time.Duration) error

	// ActiveRoomIDs lists rooms the reaper should inspect.
	ActiveRoomIDs(ctx context.Context) ([]string, error)

	// === Membership ===

	// AddMember stores the member, electing it admin when wantAdmin is set
	// and the room has no admin yet. The elected role is written back into
	// the returned member. Fails with ErrRoomClosed on a closed room.
	AddMember(ctx context.Context, roomID string, member *domain.Member, wantAdmin bool) (*domain.Member, error)

	// GetMember loads one member. ErrNotFound if absent (never joined, or
	// kicked).
	GetMember(ctx context.Context, roomID, memberID string) (*domain.Member, error)

	// ListMembers returns the full roster ordered by join time.
	ListMembers(ctx context.Context, roomID string) ([]domain.Member, error)

	// PromoteMember transfers the admin role from caller to target as one
	// atomic step: target becomes admin, caller becomes participant.
	PromoteMember(ctx context.Context, roomID, callerMemberID, targetMemberID string) error

	// RemoveMember deletes the target from the registry (admin-only).
	RemoveMember(ctx context.Context, roomID, callerMemberID, targetMemberID string) error

	// SetConnectionState flips attached/detached without touching the rest
	// of the member record.
	SetConnectionState(ctx context.Context, roomID, memberID string, state domain.ConnectionState) error

	// === Message pipeline ===

	// AppendMessage runs the whole sequencing step atomically: status check,
	// membership check, dedup lookup, counter increment, bounded history
	// append and dedup record. On a duplicate clientMsgId it returns the
	// previously assigned message with duplicate=true and mutates nothing.
	AppendMessage(ctx context.Context, roomID, authorMemberID, content, clientMsgID string, sentAt time.Time) (*domain.Message, bool, error)

	// RecentMessages returns up to limit newest messages, oldest first.
	RecentMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error)

	// === Typing indicators (best effort, time-boxed) ===

	// SetTyping marks the member as typing until the ttl lapses and returns
	// the current set of typing member ids.
	SetTyping(ctx context.Context, roomID, memberID string, ttl time.Duration) ([]string, error)

	// ClearTyping removes the member's indicator and returns the remaining
	// set.
	ClearTyping(ctx context.Context, roomID, memberID string) ([]string, error)

	// === Fanout ===

	// Publish sends an encoded fanout frame to the room's channel. Delivery
	// to subscribers is fire-and-forget.
	Publish(ctx context.Context, roomID string, frame []byte) error

	// === Instance health / limits ===

	// CheckRateLimit increments the counter behind key and reports whether
	// it exceeded limit within the window.
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	// Ping reports store connectivity; instance readiness mirrors it.
	Ping(ctx context.Context) error
}
