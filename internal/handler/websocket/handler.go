package websocket

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"huddle/internal/hub"
	"huddle/internal/protocol"
	"huddle/internal/service"
)

// WebSocketHandler upgrades connections and dispatches the directed calls of
// the wire protocol onto the services. Every call either gets exactly one
// reply (matched by cid) or, for the fire-and-forget calls, is answered via
// events; there is no unreported failure path.
type WebSocketHandler struct {
	upgrader       websocket.Upgrader
	hub            *hub.Hub
	roomService    *service.RoomService
	memberService  *service.MemberService
	messageService *service.MessageService
	serverID       string
}

// NewWebSocketHandler creates the handler and registers it as the hub's
// dispatcher.
func NewWebSocketHandler(h *hub.Hub, rooms *service.RoomService, members *service.MemberService, messages *service.MessageService, serverID string) *WebSocketHandler {
	if h == nil || rooms == nil || members == nil || messages == nil {
		panic("all dependencies must be non-nil for WebSocketHandler")
	}
	handler := &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: restrict to the deployed frontend origin.
				return true
			},
		},
		hub:            h,
		roomService:    rooms,
		memberService:  members,
		messageService: messages,
		serverID:       serverID,
	}
	h.SetDispatcher(handler)
	return handler
}

// HandleConnection upgrades the HTTP request and starts the client pumps.
// The connection is unbound until its first successful room:join or
// room:rejoin call.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logrus.WithError(err).Warn("WS handler: failed to upgrade connection")
		return
	}
	client := hub.NewClient(h.hub, conn, uuid.NewString())
	logrus.WithField("conn_id", client.ConnID()).Info("WS handler: connection upgraded")
	client.Run()
}

// HandleFrame processes one inbound frame. Called from the client's read
// pump, so a connection's calls apply in the order they were sent.
func (h *WebSocketHandler) HandleFrame(ctx context.Context, client *hub.Client, data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		logrus.WithError(err).WithField("conn_id", client.ConnID()).Warn("Dropping malformed frame")
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{
		"conn_id": client.ConnID(),
		"call":    env.Type,
	})

	switch env.Type {
	case protocol.CallWhoami:
		h.reply(client, env.CID, protocol.WhoamiReply{Reply: okReply(), ServerID: h.serverID})

	case protocol.CallRoomJoin:
		h.handleJoin(ctx, client, env)

	case protocol.CallRoomRejoin:
		h.handleRejoin(ctx, client, env)

	case protocol.CallRoomStart:
		if !h.requireBound(client, env.CID) {
			return
		}
		err := h.roomService.Start(ctx, client.RoomID(), client.MemberID())
		h.reply(client, env.CID, replyFor(err))

	case protocol.CallRoomClose:
		if !h.requireBound(client, env.CID) {
			return
		}
		err := h.roomService.Close(ctx, client.RoomID(), client.MemberID(), "closed by admin")
		h.reply(client, env.CID, replyFor(err))

	case protocol.CallMessageSend:
		h.handleSend(ctx, client, env)

	case protocol.CallMemberPromote:
		var req protocol.PromoteRequest
		if !h.requireBound(client, env.CID) || !h.bind(client, env, &req) {
			return
		}
		err := h.memberService.Promote(ctx, client.RoomID(), client.MemberID(), req.MemberID)
		h.reply(client, env.CID, replyFor(err))

	case protocol.CallMemberKick:
		var req protocol.KickRequest
		if !h.requireBound(client, env.CID) || !h.bind(client, env, &req) {
			return
		}
		err := h.memberService.Kick(ctx, client.RoomID(), client.MemberID(), req.MemberID)
		h.reply(client, env.CID, replyFor(err))

	case protocol.CallTypingStart:
		if client.Bound() {
			h.messageService.TypingStart(ctx, client.RoomID(), client.MemberID())
		}

	case protocol.CallTypingStop:
		if client.Bound() {
			h.messageService.TypingStop(ctx, client.RoomID(), client.MemberID())
		}

	default:
		logCtx.Warn("Unknown call type")
		if env.CID != "" {
			h.reply(client, env.CID, errReply("unknown call"))
		}
	}
}

// HandleDisconnect marks the member detached after its transport is gone.
// Membership survives; the member can rejoin with its id.
func (h *WebSocketHandler) HandleDisconnect(client *hub.Client) {
	h.memberService.Detach(context.Background(), client.RoomID(), client.MemberID())
}

func (h *WebSocketHandler) handleJoin(ctx context.Context, client *hub.Client, env *protocol.Envelope) {
	if client.Bound() {
		h.reply(client, env.CID, protocol.JoinReply{Reply: errReply("connection already bound to a room")})
		return
	}
	var req protocol.JoinRequest
	if err := env.Bind(&req); err != nil {
		h.reply(client, env.CID, protocol.JoinReply{Reply: errReply(err.Error())})
		return
	}
	member, err := h.memberService.Join(ctx, req.RoomID, req.UserName, req.UserAvatar, req.IsCreator)
	if err != nil {
		h.reply(client, env.CID, protocol.JoinReply{Reply: errReply(reasonFor(err))})
		return
	}
	client.Bind(req.RoomID, member.ID)
	h.reply(client, env.CID, protocol.JoinReply{Reply: okReply(), MemberID: member.ID})

	// The join broadcast went out before this socket subscribed; hand the
	// caller the roster directly so it starts from a complete view.
	if roster, err := h.memberService.Roster(ctx, req.RoomID); err == nil {
		h.sendEvent(client, protocol.EventRoomMembers, protocol.RoomMembers{Members: roster})
	}
}

func (h *WebSocketHandler) handleRejoin(ctx context.Context, client *hub.Client, env *protocol.Envelope) {
	var req protocol.RejoinRequest
	if err := env.Bind(&req); err != nil || client.Bound() {
		h.sendEvent(client, protocol.EventRejoinFailed, protocol.RejoinFailed{Reason: "not found"})
		return
	}
	member, recent, err := h.memberService.Rejoin(ctx, req.RoomID, req.MemberID, client.ConnID())
	if err != nil {
		h.sendEvent(client, protocol.EventRejoinFailed, protocol.RejoinFailed{Reason: rejoinReason(err)})
		return
	}
	client.Bind(req.RoomID, member.ID)
	h.sendEvent(client, protocol.EventRoomJoined, protocol.RoomJoined{
		OK:     true,
		RoomID: req.RoomID,
		Recent: recent,
	})
}

func (h *WebSocketHandler) handleSend(ctx context.Context, client *hub.Client, env *protocol.Envelope) {
	if !h.requireBound(client, env.CID) {
		return
	}
	var req protocol.SendRequest
	if !h.bind(client, env, &req) {
		return
	}
	msg, duplicate, err := h.messageService.Send(ctx, client.RoomID(), client.MemberID(), req.Text, req.ClientMsgID)
	if err != nil {
		h.reply(client, env.CID, protocol.SendReply{Reply: errReply(reasonFor(err))})
		return
	}
	h.reply(client, env.CID, protocol.SendReply{Reply: okReply(), Seq: msg.Seq, Duplicate: duplicate})
}

// --- reply plumbing ---

func (h *WebSocketHandler) reply(client *hub.Client, cid string, payload interface{}) {
	if cid == "" {
		return // fire-and-forget call
	}
	frame, err := protocol.Encode(protocol.TypeReply, cid, payload)
	if err != nil {
		logrus.WithError(err).Error("Failed to encode reply")
		return
	}
	client.Send(frame)
}

func (h *WebSocketHandler) sendEvent(client *hub.Client, eventType string, payload interface{}) {
	frame, err := protocol.Encode(eventType, "", payload)
	if err != nil {
		logrus.WithError(err).WithField("event", eventType).Error("Failed to encode event")
		return
	}
	client.Send(frame)
}

func (h *WebSocketHandler) requireBound(client *hub.Client, cid string) bool {
	if client.Bound() {
		return true
	}
	h.reply(client, cid, errReply("join a room first"))
	return false
}

func (h *WebSocketHandler) bind(client *hub.Client, env *protocol.Envelope, dst interface{}) bool {
	if err := env.Bind(dst); err != nil {
		h.reply(client, env.CID, errReply(err.Error()))
		return false
	}
	return true
}

func okReply() protocol.Reply { return protocol.Reply{OK: true} }

func errReply(reason string) protocol.Reply { return protocol.Reply{OK: false, Error: reason} }

func replyFor(err error) protocol.Reply {
	if err != nil {
		return errReply(reasonFor(err))
	}
	return okReply()
}

// reasonFor keeps wire reasons human-readable and distinguishes "not found"
// from "closed": clients react differently (closed is terminal, not-found
// may be a typo).
func reasonFor(err error) string {
	if errors.Is(err, service.ErrServiceUnavailable) {
		return "service unavailable"
	}
	return err.Error()
}

func rejoinReason(err error) string {
	switch {
	case errors.Is(err, service.ErrRoomClosed):
		return "closed or expired"
	case errors.Is(err, service.ErrRoomNotFound), errors.Is(err, service.ErrMemberNotFound):
		return "not found"
	default:
		return "service unavailable"
	}
}
