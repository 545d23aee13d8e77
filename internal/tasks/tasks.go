package tasks

import "encoding/json"

// Task type names registered with the worker server.
const (
	// TypeRoomReap is the periodic sweep closing TTL-expired rooms and
	// reclaiming their keys.
	TypeRoomReap = "room:reap"
)

// RoomReapPayload is currently empty; the sweep discovers its work from the
// active-rooms index.
type RoomReapPayload struct{}

// NewRoomReapTask builds the payload for a reap task.
func NewRoomReapTask() ([]byte, error) {
	return json.Marshal(RoomReapPayload{})
}
