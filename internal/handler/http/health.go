package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"huddle/internal/repository"
)

// HealthHandler exposes liveness and readiness. Readiness mirrors store
// connectivity: an instance that cannot reach the shared store must not
// receive traffic, because it cannot apply any mutation consistently.
type HealthHandler struct {
	stateRepo repository.StateRepository
	serverID  string
}

func NewHealthHandler(stateRepo repository.StateRepository, serverID string) *HealthHandler {
	if stateRepo == nil {
		panic("StateRepository cannot be nil for HealthHandler")
	}
	return &HealthHandler{stateRepo: stateRepo, serverID: serverID}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, gin.H{"status": "ok", "serverId": h.serverID})
}

func (h *HealthHandler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.stateRepo.Ping(ctx); err != nil {
		ErrorResponse(c, http.StatusServiceUnavailable, "state store unreachable")
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"status": "ready", "serverId": h.serverID})
}
