package middleware

import (
	"context"
	"net/http"
	"strings"

	"benome-realtime/internal/services"
	"benome-realtime/internal/transport/httpdto"
	benome_errors "benome-realtime/pkg/errors"

	"github.com/gin-gonic/gin"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (services.Identity, error)
}

// AuthMiddleware accepts a bearer token for an existing user and stores the
// user id on the request context.
func AuthMiddleware(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := auth.Authenticate(c.Request.Context(), extractBearer(c))
		if err != nil {
			c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", benome_errors.Code(err)))
			c.Abort()
			return
		}

		ctx := services.WithUserContext(c.Request.Context(), identity.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
