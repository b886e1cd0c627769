package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cinesync/internal/core/ports"
)

type ChatHandler struct {
	relay ports.RelayService
}

func NewChatHandler(relay ports.RelayService) *ChatHandler {
	return &ChatHandler{relay: relay}
}

func (h *ChatHandler) SetupRoutes(api *gin.RouterGroup) {
	api.GET("/chat/history/:roomId", h.GetHistory)
}

func (h *ChatHandler) GetHistory(c *gin.Context) {
	roomID, err := roomIDParam(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	events, err := h.relay.History(c.Request.Context(), roomID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, events)
}
