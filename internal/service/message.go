package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"huddle/internal/domain"
	"huddle/internal/protocol"
	"huddle/internal/repository"
)

const (
	// Messages past this bound are rejected with ErrMessageTooLong.
	maxMessageLen = 2000
	// How long a typing indicator survives without a refresh. Keeps
	// ungracefully dropped connections from leaving a stuck indicator.
	typingTTL = 6 * time.Second
)

// MessageService runs the message pipeline: validation, idempotent dedup,
// atomic sequencing, bounded history and fanout, plus the best-effort
// typing indicators.
type MessageService struct {
	stateRepo repository.StateRepository
	roomTTL   time.Duration
}

func NewMessageService(stateRepo repository.StateRepository, roomTTL time.Duration) *MessageService {
	if stateRepo == nil {
		panic("StateRepository cannot be nil for MessageService")
	}
	if roomTTL <= 0 {
		roomTTL = 24 * time.Hour
	}
	return &MessageService{stateRepo: stateRepo, roomTTL: roomTTL}
}

// Send validates, sequences and fans out one message. A clientMsgId already
// seen for this room resolves to the previously assigned seq with
// duplicate=true: the counter is not re-incremented and nothing is
// re-broadcast. Sequence numbers stay gapless under any number of concurrent
// senders because the whole increment-and-append runs as one atomic step in
// the store.
func (s *MessageService) Send(ctx context.Context, roomID, memberID, text, clientMsgID string) (*domain.Message, bool, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "member_id": memberID})

	if strings.TrimSpace(text) == "" {
		return nil, false, ErrMessageEmpty
	}
	if utf8.RuneCountInString(text) > maxMessageLen {
		return nil, false, ErrMessageTooLong
	}

	msg, duplicate, err := s.stateRepo.AppendMessage(ctx, roomID, memberID, text, clientMsgID, time.Now().UTC())
	if err != nil {
		logCtx.WithError(err).Warn("Send rejected")
		return nil, false, s.mapSendError(err)
	}
	if duplicate {
		logCtx.WithFields(logrus.Fields{
			"seq":           msg.Seq,
			"client_msg_id": clientMsgID,
		}).Debug("Duplicate send resolved to existing seq")
		return msg, true, nil
	}
	logCtx.WithField("seq", msg.Seq).Debug("Message sequenced")

	if err := s.stateRepo.TouchRoom(ctx, roomID, s.roomTTL); err != nil {
		logCtx.WithError(err).Warn("Failed to refresh room TTL after send")
	}

	// The sender receives the broadcast too; its reply only carries the seq.
	_ = publishEvent(ctx, s.stateRepo, roomID, protocol.EventMessageRecv, protocol.MessageReceived{
		Seq:            msg.Seq,
		AuthorMemberID: msg.AuthorMemberID,
		Content:        msg.Content,
		SentAt:         msg.SentAt.UTC().Format(time.RFC3339Nano),
	})
	return msg, false, nil
}

// mapSendError keeps the send-specific taxonomy: a room that exists but is
// not yet chatting reads differently to clients than a closed one.
func (s *MessageService) mapSendError(err error) error {
	switch mapped := mapRepoError(err); mapped {
	case ErrInvalidState:
		return ErrRoomNotChatting
	default:
		return mapped
	}
}

// TypingStart marks the member as typing and broadcasts the full current
// set. Indicators are ephemeral, time-boxed state with no delivery
// guarantee.
func (s *MessageService) TypingStart(ctx context.Context, roomID, memberID string) {
	typing, err := s.stateRepo.SetTyping(ctx, roomID, memberID, typingTTL)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_id":   roomID,
			"member_id": memberID,
		}).Warn("Failed to set typing indicator")
		return
	}
	_ = publishEvent(ctx, s.stateRepo, roomID, protocol.EventTypingUpdate, protocol.TypingUpdate{TypingUsers: typing})
}

// TypingStop clears the member's indicator and broadcasts the remaining set.
func (s *MessageService) TypingStop(ctx context.Context, roomID, memberID string) {
	typing, err := s.stateRepo.ClearTyping(ctx, roomID, memberID)
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_id":   roomID,
			"member_id": memberID,
		}).Warn("Failed to clear typing indicator")
		return
	}
	_ = publishEvent(ctx, s.stateRepo, roomID, protocol.EventTypingUpdate, protocol.TypingUpdate{TypingUsers: typing})
}

// Recent returns up to limit newest messages, oldest first. Reads need no
// locking; they come straight from the store.
func (s *MessageService) Recent(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	messages, err := s.stateRepo.RecentMessages(ctx, roomID, limit)
	if err != nil {
		return nil, ErrServiceUnavailable
	}
	return messages, nil
}
