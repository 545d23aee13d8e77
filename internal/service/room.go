package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"huddle/internal/domain"
	"huddle/internal/protocol"
	"huddle/internal/repository"
)

// Word lists for human-memorable passphrases. Two words and a two-digit
// number give enough space for the fleet's expected concurrent room count;
// collisions are handled by retrying against the store's uniqueness check.
var (
	passphraseAdjectives = []string{
		"amber", "brave", "calm", "dusty", "eager", "fuzzy", "gentle", "happy",
		"ivory", "jolly", "keen", "lucky", "mellow", "nimble", "olive", "plucky",
		"quiet", "rustic", "sunny", "tidy", "vivid", "witty", "young", "zesty",
	}
	passphraseNouns = []string{
		"badger", "canyon", "dolphin", "ember", "falcon", "garden", "harbor",
		"island", "jungle", "kettle", "lantern", "meadow", "nebula", "orchard",
		"pebble", "quartz", "river", "saddle", "thistle", "umbrella", "violet",
		"willow", "yonder", "zephyr",
	}
)

// RoomService owns the provisioning boundary and the room lifecycle state
// machine. The lifecycle transitions themselves happen atomically inside the
// store; this layer validates, maps errors and fans events out.
type RoomService struct {
	stateRepo repository.StateRepository
	roomTTL   time.Duration
}

// NewRoomService creates the service. roomTTL bounds how long an unclosed
// room lives.
func NewRoomService(stateRepo repository.StateRepository, roomTTL time.Duration) *RoomService {
	if stateRepo == nil {
		panic("StateRepository cannot be nil for RoomService")
	}
	if roomTTL <= 0 {
		roomTTL = 24 * time.Hour
	}
	return &RoomService{stateRepo: stateRepo, roomTTL: roomTTL}
}

// Create provisions a new room in the waiting state and returns it together
// with its passphrase and short code.
func (s *RoomService) Create(ctx context.Context, name, avatarGlyph string) (*domain.Room, error) {
	logCtx := logrus.WithField("room_name", name)

	now := time.Now().UTC()
	room := &domain.Room{
		ID:          uuid.NewString(),
		Name:        name,
		AvatarGlyph: avatarGlyph,
		Status:      domain.RoomWaiting,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.roomTTL),
	}

	const maxAttempts = 10
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		passphrase, err := generatePassphrase()
		if err != nil {
			logCtx.WithError(err).Error("Failed to generate passphrase")
			return nil, ErrServiceUnavailable
		}
		shortCode, err := generateShortCode()
		if err != nil {
			logCtx.WithError(err).Error("Failed to generate short code")
			return nil, ErrServiceUnavailable
		}
		room.Passphrase = passphrase
		room.ShortCode = shortCode

		err = s.stateRepo.CreateRoom(ctx, room, s.roomTTL)
		if err == nil {
			logCtx.WithFields(logrus.Fields{
				"room_id":    room.ID,
				"short_code": room.ShortCode,
			}).Info("Room created")
			return room, nil
		}
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.Warnf("Passphrase or short code already taken, retrying (attempt %d)...", attempt)
			continue
		}
		logCtx.WithError(err).Error("Failed to store new room")
		return nil, ErrServiceUnavailable
	}
	logCtx.Errorf("Failed to provision a unique room alias after %d attempts", maxAttempts)
	return nil, ErrServiceUnavailable
}

// Lookup resolves a short code or passphrase to the room record.
func (s *RoomService) Lookup(ctx context.Context, alias string) (*domain.Room, error) {
	roomID, err := s.stateRepo.LookupRoomID(ctx, alias)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("alias", alias).Error("Alias lookup failed")
		return nil, ErrServiceUnavailable
	}
	return s.Get(ctx, roomID)
}

// Get loads one room by id.
func (s *RoomService) Get(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := s.stateRepo.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to load room")
		return nil, ErrServiceUnavailable
	}
	return room, nil
}

// Start moves the room from waiting to chatting. Only the current admin may
// start; the authority check runs inside the same atomic step as the
// transition, so a racing demotion or close is observed, never overwritten.
func (s *RoomService) Start(ctx context.Context, roomID, callerMemberID string) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "member_id": callerMemberID})

	if err := s.stateRepo.StartRoom(ctx, roomID, callerMemberID); err != nil {
		logCtx.WithError(err).Warn("Room start rejected")
		return mapRepoError(err)
	}
	logCtx.Info("Room started")

	_ = publishEvent(ctx, s.stateRepo, roomID, protocol.EventRoomStarted, protocol.RoomStarted{
		Status: string(domain.RoomChatting),
	})
	return nil
}

// Close moves the room to its terminal state and announces it. The room's
// keys stay until TTL reclamation so late callers can still distinguish
// "closed" from "never existed".
func (s *RoomService) Close(ctx context.Context, roomID, callerMemberID, reason string) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "member_id": callerMemberID})

	if err := s.stateRepo.CloseRoom(ctx, roomID, callerMemberID, false); err != nil {
		logCtx.WithError(err).Warn("Room close rejected")
		return mapRepoError(err)
	}
	if reason == "" {
		reason = "closed by admin"
	}
	logCtx.WithField("reason", reason).Info("Room closed")

	_ = publishEvent(ctx, s.stateRepo, roomID, protocol.EventRoomClosed, protocol.RoomClosed{Reason: reason})
	return nil
}

// Expire is the TTL reclamation path: closes without an admin check,
// announces reason "expired" and deletes the room's keys.
func (s *RoomService) Expire(ctx context.Context, roomID string) error {
	logCtx := logrus.WithField("room_id", roomID)

	err := s.stateRepo.CloseRoom(ctx, roomID, "", true)
	switch {
	case err == nil:
		_ = publishEvent(ctx, s.stateRepo, roomID, protocol.EventRoomClosed, protocol.RoomClosed{Reason: "expired"})
	case errors.Is(err, repository.ErrRoomClosed), errors.Is(err, repository.ErrNotFound):
		// Already terminal (or meta TTL beat us); just reclaim leftovers.
	default:
		logCtx.WithError(err).Error("Failed to force-close expired room")
		return mapRepoError(err)
	}

	if err := s.stateRepo.CleanupRoom(ctx, roomID); err != nil {
		logCtx.WithError(err).Error("Failed to reclaim room keys")
		return ErrServiceUnavailable
	}
	logCtx.Info("Room expired and reclaimed")
	return nil
}

// TTL returns the configured room lifetime.
func (s *RoomService) TTL() time.Duration { return s.roomTTL }

// --- alias generation helpers ---

func generatePassphrase() (string, error) {
	adj, err := pickWord(passphraseAdjectives)
	if err != nil {
		return "", err
	}
	noun, err := pickWord(passphraseNouns)
	if err != nil {
		return "", err
	}
	n, err := rand.Int(rand.Reader, big.NewInt(90))
	if err != nil {
		return "", fmt.Errorf("generate passphrase number: %w", err)
	}
	return fmt.Sprintf("%s-%s-%d", adj, noun, n.Int64()+10), nil
}

func pickWord(words []string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		return "", fmt.Errorf("pick passphrase word: %w", err)
	}
	return words[n.Int64()], nil
}

func generateShortCode() (string, error) {
	const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	const codeLength = 6
	b := make([]byte, codeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate short code: %w", err)
	}
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return string(b), nil
}
