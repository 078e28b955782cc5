package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/EternisAI/blinkup-bridge/internal/api/http/dto"
	"github.com/EternisAI/blinkup-bridge/internal/blinkup"
	"github.com/gin-gonic/gin"
)

const (
	callbackIDHeader = "X-Callback-Id"
	resultEvent      = "result"
)

type Coordinator interface {
	Start(ctx context.Context, apiKey string, opts blinkup.Options, ch blinkup.Channel) (string, error)
	Abort() bool
	ClearStoredData(ctx context.Context) blinkup.Result
	Status() blinkup.Snapshot
}

type BlinkUpHandler struct {
	coordinator Coordinator
}

func NewBlinkUpHandler(coordinator Coordinator) *BlinkUpHandler {
	return &BlinkUpHandler{
		coordinator: coordinator,
	}
}

// Start runs a BlinkUp and streams its results as server-sent events until
// the attempt ends. An aborted attempt ends the stream without an event.
// POST /blinkup/start
func (h *BlinkUpHandler) Start(c *gin.Context) {
	var req dto.StartBlinkUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, blinkup.PluginErrorResult(blinkup.CodeInvalidArguments, err.Error()))
		return
	}

	opts := blinkup.Options{
		PlanID:          req.PlanID,
		TimeoutMs:       req.TimeoutMs,
		IsInDevelopment: req.IsInDevelopment,
		Strings:         req.Strings,
	}

	ch := blinkup.NewStreamChannel()
	callbackID, err := h.coordinator.Start(c.Request.Context(), req.APIKey, opts, ch)
	if err != nil {
		slog.Warn("BlinkUp start rejected", "callback_id", callbackID, "error", err)
	}

	c.Header(callbackIDHeader, callbackID)
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	for {
		select {
		case msg, ok := <-ch.Messages():
			if !ok {
				return
			}
			c.SSEvent(resultEvent, msg)
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			slog.Info("BlinkUp client went away, attempt keeps running", "callback_id", callbackID)
			return
		}
	}
}

// Abort stops the running BlinkUp, if any.
// POST /blinkup/abort
func (h *BlinkUpHandler) Abort(c *gin.Context) {
	aborted := h.coordinator.Abort()
	c.JSON(http.StatusOK, dto.AbortBlinkUpResponse{Acknowledged: true, Aborted: aborted})
}

// Clear wipes saved network credentials and the cached plan id.
// POST /blinkup/clear
func (h *BlinkUpHandler) Clear(c *gin.Context) {
	result := h.coordinator.ClearStoredData(c.Request.Context())
	if result.State == blinkup.StateError {
		c.JSON(http.StatusInternalServerError, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GET /blinkup/status
func (h *BlinkUpHandler) Status(c *gin.Context) {
	snap := h.coordinator.Status()

	resp := dto.BlinkUpStatusResponse{
		Active:     snap.Active,
		Phase:      string(snap.Phase),
		CallbackID: snap.CallbackID,
	}
	if snap.Active {
		resp.StartedAt = &snap.StartedAt
	}
	c.JSON(http.StatusOK, resp)
}
