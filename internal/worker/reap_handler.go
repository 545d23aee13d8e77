package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"huddle/internal/repository"
	"huddle/internal/service"
)

// RoomReapHandler runs the periodic sweep that force-closes rooms past their
// TTL and reclaims keys of rooms whose state already vanished.
type RoomReapHandler struct {
	stateRepo   repository.StateRepository
	roomService *service.RoomService
}

// NewRoomReapHandler creates a handler instance.
func NewRoomReapHandler(stateRepo repository.StateRepository, roomService *service.RoomService) *RoomReapHandler {
	if stateRepo == nil {
		panic("StateRepository cannot be nil for RoomReapHandler")
	}
	if roomService == nil {
		panic("RoomService cannot be nil for RoomReapHandler")
	}
	return &RoomReapHandler{stateRepo: stateRepo, roomService: roomService}
}

// ProcessTask implements asynq.Handler.
func (h *RoomReapHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
	})
	logCtx.Debug("Processing room reap sweep...")

	roomIDs, err := h.stateRepo.ActiveRoomIDs(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list active rooms")
		return err
	}
	if len(roomIDs) == 0 {
		return nil
	}

	now := time.Now()
	var wg sync.WaitGroup
	var reaped int64
	var reapedMu sync.Mutex

	for _, roomID := range roomIDs {
		wg.Add(1)
		go func(rID string) {
			defer wg.Done()
			roomLogCtx := logCtx.WithField("room_id", rID)

			reapCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			room, err := h.stateRepo.GetRoom(reapCtx, rID)
			switch {
			case errors.Is(err, repository.ErrNotFound):
				// Meta expired on its own; reclaim whatever is left.
			case err != nil:
				roomLogCtx.WithError(err).Error("Failed to load room during reap")
				return
			case now.Before(room.ExpiresAt):
				return
			}

			if err := h.roomService.Expire(reapCtx, rID); err != nil {
				roomLogCtx.WithError(err).Error("Failed to reap room")
				return
			}
			reapedMu.Lock()
			reaped++
			reapedMu.Unlock()
		}(roomID)
	}
	wg.Wait()

	if reaped > 0 {
		logCtx.WithField("reaped", reaped).Info("Room reap sweep completed")
	}
	// Per-room failures are logged but do not fail the sweep; the next
	// periodic run retries them.
	return nil
}
