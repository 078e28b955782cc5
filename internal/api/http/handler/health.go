package handler

import (
	"net/http"

	"github.com/EternisAI/blinkup-bridge/internal/api/http/dto"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	coordinator Coordinator
}

func NewHealthHandler(coordinator Coordinator) *HealthHandler {
	return &HealthHandler{coordinator: coordinator}
}

// Check reports liveness and whether a BlinkUp currently holds the session.
func (h *HealthHandler) Check(ctx *gin.Context) {
	resp := dto.HealthResponse{Status: "ok", BlinkUp: "idle"}
	if h.coordinator != nil && h.coordinator.Status().Active {
		resp.BlinkUp = "busy"
	}
	ctx.JSON(http.StatusOK, resp)
}
