package statusapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mailboxhub/internal/display"
)

// LampControl switches the device lamp from outside the event loop.
type LampControl interface {
	Toggle(ctx context.Context) (bool, error)
	SetLamp(ctx context.Context, on bool) error
}

// SnapshotSource provides the current display state.
type SnapshotSource interface {
	Snapshot() display.Snapshot
}

type SetLampRequest struct {
	On *bool `json:"on" binding:"required"`
}

type Handler struct {
	board SnapshotSource
	lamp  LampControl
}

func NewHandler(board SnapshotSource, lamp LampControl) *Handler {
	return &Handler{board: board, lamp: lamp}
}

// RegisterRoutes registers the status board routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/status", h.GetStatus)
	rg.POST("/lamp/toggle", h.ToggleLamp)
	rg.PUT("/lamp", h.SetLamp)
}

func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.board.Snapshot())
}

func (h *Handler) ToggleLamp(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	on, err := h.lamp.Toggle(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"lamp": on})
}

func (h *Handler) SetLamp(c *gin.Context) {
	var req SetLampRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.lamp.SetLamp(ctx, *req.On); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"lamp": *req.On})
}
