package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cinesync/internal/core/ports"
)

type RoomHandler struct {
	rooms    ports.RoomService
	presence ports.PresenceService
}

func NewRoomHandler(rooms ports.RoomService, presence ports.PresenceService) *RoomHandler {
	return &RoomHandler{rooms: rooms, presence: presence}
}

func (h *RoomHandler) SetupRoutes(api *gin.RouterGroup) {
	rooms := api.Group("/rooms")
	{
		rooms.POST("", h.CreateRoom)
		rooms.GET("/public", h.GetPublicRooms)
		rooms.POST("/join/:roomCode", h.JoinRoom)
		rooms.GET("/code/:roomCode", h.GetRoomByCode)
		rooms.POST("/code/:roomCode/leave", h.LeaveRoomByCode)
		rooms.POST("/:roomId/leave", h.LeaveRoom)
		rooms.GET("/:roomId/host", h.GetHost)
		rooms.GET("/:roomId/validate", h.ValidateAccess)
		rooms.GET("/:roomId/participants", h.GetParticipants)
	}
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req ports.CreateRoomInput
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(invalidInput(err))
		return
	}

	room, err := h.rooms.CreateRoom(c.Request.Context(), req, identity(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

func (h *RoomHandler) JoinRoom(c *gin.Context) {
	room, err := h.rooms.JoinRoom(c.Request.Context(), c.Param("roomCode"), identity(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	roomID, err := roomIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if _, err := h.rooms.LeaveRoom(c.Request.Context(), roomID, identity(c).UserID); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) LeaveRoomByCode(c *gin.Context) {
	if _, err := h.rooms.LeaveRoomByCode(c.Request.Context(), c.Param("roomCode"), identity(c).UserID); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RoomHandler) GetPublicRooms(c *gin.Context) {
	rooms, err := h.rooms.GetPublicRooms(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (h *RoomHandler) GetRoomByCode(c *gin.Context) {
	room, err := h.rooms.GetRoomByCode(c.Request.Context(), c.Param("roomCode"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) GetHost(c *gin.Context) {
	roomID, err := roomIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	hostID, err := h.rooms.GetHostID(c.Request.Context(), roomID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hostUserId": hostID})
}

// ValidateAccess reports whether the caller holds a seat in the room.
func (h *RoomHandler) ValidateAccess(c *gin.Context) {
	roomID, err := roomIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	allowed, err := h.rooms.IsParticipant(c.Request.Context(), roomID, identity(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allowed": allowed})
}

// GetParticipants lists who is connected right now, which can differ from
// who holds a seat.
func (h *RoomHandler) GetParticipants(c *gin.Context) {
	roomID, err := roomIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	members, err := h.presence.Participants(c.Request.Context(), roomID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": roomID, "participants": members})
}
