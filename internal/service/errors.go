package service

import (
	"errors"

	"huddle/internal/repository"
)

// Business errors surfaced to callers. The transport layer turns these into
// ok:false replies; anything not in this list is reported as the generic
// service-unavailable condition rather than leaking store internals.
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomClosed         = errors.New("room closed")
	ErrRoomNotChatting    = errors.New("room is not chatting")
	ErrInvalidState       = errors.New("operation not allowed in current room state")
	ErrNotAuthorized      = errors.New("caller is not the room admin")
	ErrMemberNotFound     = errors.New("member not found")
	ErrNotInRoom          = errors.New("member is not in the room")
	ErrNameEmpty          = errors.New("display name is empty")
	ErrNameTooLong        = errors.New("display name too long")
	ErrMessageEmpty       = errors.New("message is empty")
	ErrMessageTooLong     = errors.New("message too long")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// mapRepoError translates store sentinels into the business taxonomy. Store
// errors that are not sentinels mean the shared store itself misbehaved, so
// the in-flight operation fails as unavailable instead of silently diverging.
func mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrRoomClosed):
		return ErrRoomClosed
	case errors.Is(err, repository.ErrInvalidState):
		return ErrInvalidState
	case errors.Is(err, repository.ErrNotAuthorized):
		return ErrNotAuthorized
	case errors.Is(err, repository.ErrNotInRoom):
		return ErrNotInRoom
	case errors.Is(err, repository.ErrMemberNotFound):
		return ErrMemberNotFound
	case errors.Is(err, repository.ErrNotFound):
		return ErrRoomNotFound
	}
	return ErrServiceUnavailable
}
