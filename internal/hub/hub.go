// Package hub is the local half of the fanout bus: it tracks which sockets
// are attached to this instance, keeps one store subscription per room with
// local members, and delivers inbound fanout frames to those sockets.
// Mutations never live here: the shared store is the source of truth, and
// the hub only moves bytes the last hop.
package hub

import (
	"context"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	redisstate "huddle/internal/infra/state/redis"
	"huddle/internal/protocol"
)

// Dispatcher handles inbound client traffic. The websocket handler
// implements it; the indirection keeps the hub free of call semantics.
type Dispatcher interface {
	// HandleFrame processes one raw frame from a client. Called from the
	// client's read pump, so calls from one connection arrive in order.
	HandleFrame(ctx context.Context, client *Client, data []byte)
	// HandleDisconnect runs after a bound client's transport is gone.
	HandleDisconnect(client *Client)
}

type subscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
}

// Hub maintains the set of locally attached clients per room and one store
// subscription per room that has any.
type Hub struct {
	redisClient *redis.Client
	keyPrefix   string
	dispatcher  Dispatcher

	roomsMu sync.RWMutex
	rooms   map[string]map[*Client]bool
	subs    map[string]*subscription

	closed bool
}

// NewHub creates the hub. The dispatcher is attached afterwards because the
// websocket handler needs the hub first.
func NewHub(redisClient *redis.Client, keyPrefix string) *Hub {
	if redisClient == nil {
		panic("redis client cannot be nil for Hub")
	}
	return &Hub{
		redisClient: redisClient,
		keyPrefix:   keyPrefix,
		rooms:       make(map[string]map[*Client]bool),
		subs:        make(map[string]*subscription),
	}
}

// SetDispatcher wires the inbound frame handler. Must be called before any
// client connects.
func (h *Hub) SetDispatcher(d Dispatcher) {
	if d == nil {
		panic("dispatcher cannot be nil for Hub")
	}
	h.dispatcher = d
}

// Register adds a bound client to its room's local set, starting the room's
// store subscription if this is the first local member. The subscription is
// live before Register returns, so events published after a successful
// join/rejoin reply cannot be missed.
func (h *Hub) Register(client *Client) {
	roomID := client.RoomID()
	logCtx := logrus.WithFields(logrus.Fields{
		"room_id":   roomID,
		"member_id": client.MemberID(),
	})

	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	if h.closed {
		logCtx.Warn("Hub closed, rejecting client registration")
		client.CloseConn()
		return
	}
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
		h.subscribeLocked(roomID)
	}
	h.rooms[roomID][client] = true
	logCtx.Info("Client registered to hub")
}

// Unregister drops the client; when its room has no local clients left the
// room's subscription is stopped.
func (h *Hub) Unregister(client *Client) {
	roomID := client.RoomID()
	if roomID == "" {
		return // never bound
	}

	h.roomsMu.Lock()
	if roomClients, ok := h.rooms[roomID]; ok {
		if roomClients[client] {
			delete(roomClients, client)
			client.closeSend()
		}
		if len(roomClients) == 0 {
			delete(h.rooms, roomID)
			h.unsubscribeLocked(roomID)
		}
	}
	h.roomsMu.Unlock()
	logrus.WithFields(logrus.Fields{
		"room_id":   roomID,
		"member_id": client.MemberID(),
	}).Info("Client unregistered from hub")
}

// subscribeLocked starts the room's pub/sub pump. Caller holds roomsMu.
func (h *Hub) subscribeLocked(roomID string) {
	channel := redisstate.RoomChannel(h.keyPrefix, roomID)
	pubsub := h.redisClient.Subscribe(context.Background(), channel)
	sub := &subscription{pubsub: pubsub, done: make(chan struct{})}
	h.subs[roomID] = sub

	go func() {
		defer close(sub.done)
		for msg := range pubsub.Channel() {
			h.deliver(roomID, []byte(msg.Payload))
		}
		logrus.WithField("room_id", roomID).Debug("Room subscription pump exited")
	}()
	logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"channel": channel,
	}).Info("Subscribed to room channel")
}

// unsubscribeLocked stops the room's pump. Caller holds roomsMu.
func (h *Hub) unsubscribeLocked(roomID string) {
	sub, ok := h.subs[roomID]
	if !ok {
		return
	}
	delete(h.subs, roomID)
	if err := sub.pubsub.Close(); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Warn("Failed to close room subscription")
	}
	logrus.WithField("room_id", roomID).Info("Unsubscribed from room channel")
}

// deliver routes one fanout frame to the locally attached sockets of the
// room. Delivery is fire-and-forget: a full or dead client is skipped, its
// own pump handles the fallout.
func (h *Hub) deliver(roomID string, payload []byte) {
	frame, err := protocol.DecodeFrame(payload)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Warn("Dropping undecodable fanout frame")
		return
	}

	h.roomsMu.RLock()
	roomClients := h.rooms[roomID]
	targets := make([]*Client, 0, len(roomClients))
	for client := range roomClients {
		if frame.Target != "" && client.MemberID() != frame.Target {
			continue
		}
		if frame.SkipConn != "" && client.ConnID() == frame.SkipConn {
			continue
		}
		targets = append(targets, client)
	}
	h.roomsMu.RUnlock()

	for _, client := range targets {
		if len(frame.Event) > 0 {
			client.Send(frame.Event)
		}
		if frame.Disconnect {
			// Forced detach (kick or superseded attachment). Closing the
			// conn makes the read pump exit and unregister the client.
			client.CloseConn()
		}
	}
}

// StopAllSubscriptions tears down every room subscription; part of graceful
// shutdown.
func (h *Hub) StopAllSubscriptions() {
	h.roomsMu.Lock()
	h.closed = true
	for roomID := range h.subs {
		h.unsubscribeLocked(roomID)
	}
	h.roomsMu.Unlock()
	logrus.Info("All room subscriptions stopped")
}

// LocalClients reports how many sockets are attached to this instance.
func (h *Hub) LocalClients() int {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	n := 0
	for _, clients := range h.rooms {
		n += len(clients)
	}
	return n
}
