package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"huddle/internal/protocol"
	"huddle/internal/repository"
)

// publishEvent fans an event out to every instance holding sockets for the
// room. Fanout is fire-and-forget: a publish failure is reported to the
// caller, but delivery to any individual socket is never acknowledged.
func publishEvent(ctx context.Context, repo repository.StateRepository, roomID, eventType string, payload interface{}) error {
	return publishDirected(ctx, repo, roomID, eventType, payload, "", false, "")
}

// publishDirected narrows delivery to a single member. disconnect tells the
// delivering instance to also close that member's transport (kick,
// connection supersession); skipConn spares the connection that triggered
// the supersession. An empty eventType means a pure disconnect frame: no
// envelope is delivered, only the transport close.
func publishDirected(ctx context.Context, repo repository.StateRepository, roomID, eventType string, payload interface{}, target string, disconnect bool, skipConn string) error {
	var event []byte
	if eventType != "" {
		var err error
		event, err = protocol.Encode(eventType, "", payload)
		if err != nil {
			return err
		}
	}
	frame, err := protocol.EncodeFrame(event, target, disconnect, skipConn)
	if err != nil {
		return err
	}
	if err := repo.Publish(ctx, roomID, frame); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"room_id": roomID,
			"event":   eventType,
		}).Error("Failed to publish fanout event")
		return err
	}
	return nil
}
