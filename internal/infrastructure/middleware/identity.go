package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cinesync/internal/core/domain"
	apperrors "cinesync/pkg/errors"
	"cinesync/pkg/logger"
	"cinesync/pkg/validation"
)

// Identity headers are set by the gateway after it has authenticated the
// caller; this service trusts them as given.
const (
	HeaderUserID   = "X-USER-ID"
	HeaderUsername = "X-USERNAME"

	identityKey = "identity"
)

var ErrMissingIdentity = errors.New("missing or invalid identity headers")

type Identity struct {
	UserID   domain.UserID
	Username string
}

// ParseIdentity reads the gateway headers. The username falls back to the
// user id when absent.
func ParseIdentity(h http.Header) (Identity, error) {
	raw := strings.TrimSpace(h.Get(HeaderUserID))
	if raw == "" {
		return Identity{}, ErrMissingIdentity
	}
	userID, err := domain.ParseUserID(raw)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrMissingIdentity, err)
	}

	username := strings.TrimSpace(h.Get(HeaderUsername))
	if err := validation.ValidateUsername(username); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrMissingIdentity, err)
	}
	if username == "" {
		username = userID.String()
	}
	return Identity{UserID: userID, Username: username}, nil
}

// IdentityMiddleware rejects requests without a valid X-USER-ID with 401.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := ParseIdentity(c.Request.Header)
		if err != nil {
			appErr := apperrors.NewUnauthorizedError(ErrMissingIdentity.Error())
			c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{
				"error":   string(appErr.Code),
				"message": appErr.Message,
			})
			return
		}
		c.Set(identityKey, id)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), id.UserID.String()))
		c.Next()
	}
}

// CurrentIdentity returns the identity stored by IdentityMiddleware.
func CurrentIdentity(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
