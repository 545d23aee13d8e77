package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"huddle/internal/service"
)

// HandleServiceError maps business errors onto HTTP status codes. Closed and
// not-found stay distinguishable in the reason text.
func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrRoomNotFound), errors.Is(err, service.ErrMemberNotFound):
		ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrRoomClosed):
		ErrorResponse(c, http.StatusGone, err.Error())
	case errors.Is(err, service.ErrNotAuthorized):
		ErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNameEmpty),
		errors.Is(err, service.ErrNameTooLong),
		errors.Is(err, service.ErrMessageEmpty),
		errors.Is(err, service.ErrMessageTooLong):
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrServiceUnavailable):
		ErrorResponse(c, http.StatusServiceUnavailable, err.Error())
	default:
		logrus.WithError(err).Error("Unhandled internal server error")
		ErrorResponse(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
