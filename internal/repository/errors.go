package repository

import "errors"

// Store-level errors. The service layer maps these onto its business
// taxonomy; nothing above the service layer should see them.
var (
	// ErrNotFound means the requested record does not exist or has expired.
	ErrNotFound = errors.New("repository: record not found")
	// ErrRoomClosed means the room reached its terminal state.
	ErrRoomClosed = errors.New("repository: room closed")
	// ErrInvalidState means the mutation is not legal from the room's
	// current lifecycle state.
	ErrInvalidState = errors.New("repository: invalid room state")
	// ErrNotAuthorized means the caller was not the room admin at the
	// moment the mutation was applied.
	ErrNotAuthorized = errors.New("repository: caller is not admin")
	// ErrNotInRoom means the member is absent or not attached.
	ErrNotInRoom = errors.New("repository: member not in room")
	// ErrDuplicateEntry means a unique key (passphrase, short code) is taken.
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrMemberNotFound is kept distinct from ErrNotFound: clients react
	// differently to an unknown member than to an unknown room.
	ErrMemberNotFound = errors.New("repository: member not found")
)

var ErrRoomNotFound = ErrNotFound
