package http

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"cinesync/internal/core/domain"
	"cinesync/internal/infrastructure/middleware"
	"cinesync/pkg/logger"
)

// identity is always present behind IdentityMiddleware.
func identity(c *gin.Context) middleware.Identity {
	id, _ := middleware.CurrentIdentity(c)
	return id
}

// roomIDParam also tags the request context so error logs carry the room.
func roomIDParam(c *gin.Context) (domain.RoomID, error) {
	id, err := domain.ParseRoomID(c.Param("roomId"))
	if err != nil {
		return 0, err
	}
	c.Request = c.Request.WithContext(logger.WithRoomID(c.Request.Context(), id.String()))
	return id, nil
}

func invalidInput(err error) error {
	return fmt.Errorf("%v: %w", err, domain.ErrInvalidInput)
}
