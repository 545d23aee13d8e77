package hub

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096
)

// Client is one live transport. It starts unbound; a successful join or
// rejoin binds it to exactly one (roomId, memberId) pair for the rest of its
// life.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	connID string
	send   chan []byte

	mu         sync.RWMutex
	roomID     string
	memberID   string
	sendClosed bool
}

// NewClient wraps an upgraded connection. connID identifies this transport
// instance so a superseding attachment can spare itself.
func NewClient(hub *Hub, conn *websocket.Conn, connID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		connID: connID,
		send:   make(chan []byte, 256),
	}
}

// Bind ties the connection to a member identity and registers it for fanout.
func (c *Client) Bind(roomID, memberID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.memberID = memberID
	c.mu.Unlock()
	c.hub.Register(c)
}

func (c *Client) RoomID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

func (c *Client) MemberID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.memberID
}

func (c *Client) ConnID() string { return c.connID }

// Bound reports whether the connection has joined or rejoined a room.
func (c *Client) Bound() bool { return c.MemberID() != "" }

// Run starts the read and write pumps.
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
}

// Send queues a message without blocking. A full send channel means the
// client is slow or gone; the frame is dropped and its pumps deal with it.
func (c *Client) Send(message []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sendClosed {
		return
	}
	select {
	case c.send <- message:
	default:
		logrus.WithFields(logrus.Fields{
			"room_id":   c.roomID,
			"member_id": c.memberID,
		}).Warn("Client send channel full, dropping frame")
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// CloseConn closes the underlying transport.
func (c *Client) CloseConn() { c.conn.Close() }

// readPump pumps frames from the socket into the dispatcher. One goroutine
// per connection; calls are processed in arrival order so a join is fully
// applied before the sends that follow it.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		if c.Bound() && c.hub.dispatcher != nil {
			c.hub.dispatcher.HandleDisconnect(c)
		}
		c.conn.Close()
		logrus.WithFields(logrus.Fields{
			"room_id":   c.RoomID(),
			"member_id": c.MemberID(),
		}).Info("readPump exited")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithFields(logrus.Fields{
				"room_id":   c.RoomID(),
				"member_id": c.MemberID(),
			})
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed")
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}
		if c.hub.dispatcher != nil {
			c.hub.dispatcher.HandleFrame(context.Background(), c, message)
		}
	}
}

// writePump pumps queued messages to the socket and keeps the connection
// alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the send channel during unregister.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logrus.WithFields(logrus.Fields{
					"room_id":   c.RoomID(),
					"member_id": c.MemberID(),
				}).WithError(err).Warn("Failed to write message to websocket")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
