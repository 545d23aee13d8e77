package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"huddle/internal/domain"
	"huddle/internal/protocol"
	"huddle/internal/repository"
)

// Display names past this bound are rejected with ErrNameTooLong.
const maxDisplayNameLen = 99

// MemberService owns membership, roles and the reconnection protocol.
type MemberService struct {
	stateRepo repository.StateRepository
	roomTTL   time.Duration
	historyN  int
}

// NewMemberService creates the service. historyN is how many recent messages
// a rejoining member receives.
func NewMemberService(stateRepo repository.StateRepository, roomTTL time.Duration, historyN int) *MemberService {
	if stateRepo == nil {
		panic("StateRepository cannot be nil for MemberService")
	}
	if roomTTL <= 0 {
		roomTTL = 24 * time.Hour
	}
	if historyN <= 0 {
		historyN = 50
	}
	return &MemberService{stateRepo: stateRepo, roomTTL: roomTTL, historyN: historyN}
}

// Join adds a new member to the room and announces it. The returned member id
// is the capability token the client must retain for rejoining; it is never
// reissued. isCreator grants admin only while the room has no admin yet.
func (s *MemberService) Join(ctx context.Context, roomID, displayName, avatarGlyph string, isCreator bool) (*domain.Member, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "display_name": displayName})

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, ErrNameEmpty
	}
	if utf8.RuneCountInString(displayName) > maxDisplayNameLen {
		return nil, ErrNameTooLong
	}

	member := &domain.Member{
		ID:          uuid.NewString(),
		RoomID:      roomID,
		DisplayName: displayName,
		AvatarGlyph: avatarGlyph,
		JoinedAt:    time.Now().UTC(),
	}
	stored, err := s.stateRepo.AddMember(ctx, roomID, member, isCreator)
	if err != nil {
		logCtx.WithError(err).Warn("Join rejected")
		return nil, mapRepoError(err)
	}
	logCtx.WithFields(logrus.Fields{
		"member_id": stored.ID,
		"role":      stored.Role,
	}).Info("Member joined room")

	if err := s.stateRepo.TouchRoom(ctx, roomID, s.roomTTL); err != nil {
		logCtx.WithError(err).Warn("Failed to refresh room TTL after join")
	}

	_ = publishEvent(ctx, s.stateRepo, roomID, protocol.EventMemberJoined, protocol.MemberJoined{Member: *stored})
	s.broadcastRoster(ctx, roomID)
	return stored, nil
}

// Rejoin reattaches a connection to a previously issued member identity. No
// new member is ever created here; the memberId alone determines identity.
// The returned history is delivered to the caller only. Any previous
// attachment for the member (possibly on another instance) is superseded.
func (s *MemberService) Rejoin(ctx context.Context, roomID, memberID, connID string) (*domain.Member, []domain.Message, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "member_id": memberID})

	room, err := s.stateRepo.GetRoom(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Warn("Rejoin: room lookup failed")
		return nil, nil, mapRepoError(err)
	}
	if room.Closed() {
		return nil, nil, ErrRoomClosed
	}

	member, err := s.stateRepo.GetMember(ctx, roomID, memberID)
	if err != nil {
		logCtx.WithError(err).Warn("Rejoin: unknown member id")
		if errors.Is(err, repository.ErrMemberNotFound) {
			return nil, nil, ErrMemberNotFound
		}
		return nil, nil, mapRepoError(err)
	}

	if err := s.stateRepo.SetConnectionState(ctx, roomID, memberID, domain.ConnAttached); err != nil {
		logCtx.WithError(err).Error("Rejoin: failed to mark member attached")
		return nil, nil, mapRepoError(err)
	}
	member.ConnectionState = domain.ConnAttached

	// A member may be attached only once: tell every instance to drop any
	// other connection still bound to this member id.
	_ = publishDirected(ctx, s.stateRepo, roomID, "", nil, memberID, true, connID)

	recent, err := s.stateRepo.RecentMessages(ctx, roomID, s.historyN)
	if err != nil {
		logCtx.WithError(err).Error("Rejoin: failed to load recent history")
		return nil, nil, ErrServiceUnavailable
	}
	logCtx.WithField("recent", len(recent)).Info("Member rejoined room")
	return member, recent, nil
}

// Promote transfers the admin role from the caller to the target. The store
// applies the transfer as one step, so there is exactly one admin at every
// observable instant.
func (s *MemberService) Promote(ctx context.Context, roomID, callerMemberID, targetMemberID string) error {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   roomID,
		"member_id": callerMemberID,
		"target_id": targetMemberID,
	})

	if err := s.stateRepo.PromoteMember(ctx, roomID, callerMemberID, targetMemberID); err != nil {
		logCtx.WithError(err).Warn("Promote rejected")
		return mapRepoError(err)
	}
	logCtx.Info("Admin role transferred")

	_ = publishEvent(ctx, s.stateRepo, roomID, protocol.EventMemberPromoted, protocol.MemberPromoted{MemberID: targetMemberID})
	s.broadcastRoster(ctx, roomID)
	return nil
}

// Kick removes the target from the registry and forcibly detaches its
// connection. The kicked event is announced before the disconnect frame so
// the target learns why its transport drops.
func (s *MemberService) Kick(ctx context.Context, roomID, callerMemberID, targetMemberID string) error {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   roomID,
		"member_id": callerMemberID,
		"target_id": targetMemberID,
	})

	if err := s.stateRepo.RemoveMember(ctx, roomID, callerMemberID, targetMemberID); err != nil {
		logCtx.WithError(err).Warn("Kick rejected")
		return mapRepoError(err)
	}
	logCtx.Info("Member kicked")

	_ = publishEvent(ctx, s.stateRepo, roomID, protocol.EventMemberKicked, protocol.MemberKicked{MemberID: targetMemberID})
	_ = publishDirected(ctx, s.stateRepo, roomID, "", nil, targetMemberID, true, "")
	s.broadcastRoster(ctx, roomID)
	return nil
}

// Detach records transport loss. Membership persists so the member can
// rejoin later; only an explicit kick or room reclamation removes it.
func (s *MemberService) Detach(ctx context.Context, roomID, memberID string) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "member_id": memberID})

	err := s.stateRepo.SetConnectionState(ctx, roomID, memberID, domain.ConnDetached)
	if err != nil && !errors.Is(err, repository.ErrMemberNotFound) {
		logCtx.WithError(err).Warn("Failed to mark member detached")
	}

	// Dropped connections must not leave a stuck typing indicator.
	typing, err := s.stateRepo.ClearTyping(ctx, roomID, memberID)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to clear typing indicator on detach")
		return
	}
	_ = publishEvent(ctx, s.stateRepo, roomID, protocol.EventTypingUpdate, protocol.TypingUpdate{TypingUsers: typing})
	logCtx.Debug("Member detached")
}

// Roster returns the room's full member list.
func (s *MemberService) Roster(ctx context.Context, roomID string) ([]domain.Member, error) {
	members, err := s.stateRepo.ListMembers(ctx, roomID)
	if err != nil {
		return nil, ErrServiceUnavailable
	}
	return members, nil
}

func (s *MemberService) broadcastRoster(ctx context.Context, roomID string) {
	members, err := s.stateRepo.ListMembers(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to load roster for broadcast")
		return
	}
	_ = publishEvent(ctx, s.stateRepo, roomID, protocol.EventRoomMembers, protocol.RoomMembers{Members: members})
}
