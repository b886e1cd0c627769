package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cinesync/internal/core/domain"
	"cinesync/internal/core/ports"
)

type StreamHandler struct {
	streams ports.StreamService
}

func NewStreamHandler(streams ports.StreamService) *StreamHandler {
	return &StreamHandler{streams: streams}
}

func (h *StreamHandler) SetupRoutes(api *gin.RouterGroup) {
	streams := api.Group("/streams")
	{
		streams.POST("/start", h.Start)
		streams.POST("/pause", h.Pause)
		streams.POST("/resume", h.Resume)
		streams.POST("/stop", h.Stop)
		streams.GET("/state", h.GetState)
	}
}

type startRequest struct {
	RoomID      domain.RoomID `json:"roomId" binding:"required"`
	MediaType   string        `json:"mediaType" binding:"required"`
	MediaSource string        `json:"mediaSource" binding:"required"`
}

// positionRequest carries the playback position in seconds. Time is a
// pointer so a missing value can be told apart from 0.
type positionRequest struct {
	RoomID domain.RoomID `json:"roomId" binding:"required"`
	Time   *float64      `json:"time" binding:"required"`
}

type roomRequest struct {
	RoomID domain.RoomID `json:"roomId" binding:"required"`
}

func (h *StreamHandler) Start(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(invalidInput(err))
		return
	}
	snap, err := h.streams.Start(c.Request.Context(), req.RoomID, identity(c).UserID,
		domain.MediaType(req.MediaType), req.MediaSource)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *StreamHandler) Pause(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(invalidInput(err))
		return
	}
	snap, err := h.streams.Pause(c.Request.Context(), req.RoomID, identity(c).UserID, *req.Time)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *StreamHandler) Resume(c *gin.Context) {
	var req positionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(invalidInput(err))
		return
	}
	snap, err := h.streams.Resume(c.Request.Context(), req.RoomID, identity(c).UserID, *req.Time)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *StreamHandler) Stop(c *gin.Context) {
	var req roomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(invalidInput(err))
		return
	}
	snap, err := h.streams.Stop(c.Request.Context(), req.RoomID, identity(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *StreamHandler) GetState(c *gin.Context) {
	roomID, err := domain.ParseRoomID(c.Query("roomId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	snap, err := h.streams.GetState(c.Request.Context(), roomID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, snap)
}
