package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"huddle/internal/service"
)

// RoomHandler is the thin provisioning collaborator: it creates room records
// and resolves short codes or passphrases to room ids. The coordination core
// treats its outputs as opaque inputs.
type RoomHandler struct {
	roomService *service.RoomService
}

func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService}
}

type CreateRoomRequest struct {
	Name        string `json:"name" binding:"required,max=99"`
	AvatarGlyph string `json:"avatarGlyph"`
}

type CreateRoomResponse struct {
	RoomID     string `json:"roomId"`
	Passphrase string `json:"passphrase"`
	ShortCode  string `json:"shortCode"`
}

// CreateRoom provisions a new room in the waiting state.
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("Handler.CreateRoom: invalid input")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: name is required")
		return
	}

	room, err := h.roomService.Create(c.Request.Context(), req.Name, req.AvatarGlyph)
	if err != nil {
		logrus.WithError(err).Error("Handler.CreateRoom: failed to create room")
		HandleServiceError(c, err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"room_id":    room.ID,
		"short_code": room.ShortCode,
	}).Info("Handler.CreateRoom: room created")
	SuccessResponse(c, http.StatusCreated, CreateRoomResponse{
		RoomID:     room.ID,
		Passphrase: room.Passphrase,
		ShortCode:  room.ShortCode,
	})
}

type LookupRoomResponse struct {
	RoomID      string `json:"roomId"`
	Name        string `json:"name"`
	AvatarGlyph string `json:"avatarGlyph"`
	Status      string `json:"status"`
}

// LookupRoom resolves a short code or passphrase so a client knows which
// roomId to join over the socket.
func (h *RoomHandler) LookupRoom(c *gin.Context) {
	alias := c.Param("alias")
	if alias == "" {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: alias is required")
		return
	}

	room, err := h.roomService.Lookup(c.Request.Context(), alias)
	if err != nil {
		logrus.WithError(err).WithField("alias", alias).Warn("Handler.LookupRoom: lookup failed")
		HandleServiceError(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, LookupRoomResponse{
		RoomID:      room.ID,
		Name:        room.Name,
		AvatarGlyph: room.AvatarGlyph,
		Status:      string(room.Status),
	})
}
