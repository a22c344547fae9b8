package handler

import (
	"errors"
	"net/http"

	"benome-realtime/internal/services"
	"benome-realtime/internal/transport/httpdto"
	benome_errors "benome-realtime/pkg/errors"
	"benome-realtime/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func writeError(c *gin.Context, err error) {
	status := services.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.GetGlobalLogger().WithContext(c.Request.Context()).Error("request failed", zap.Error(err), zap.String("path", c.FullPath()))
	}
	c.JSON(status, httpdto.NewErrorResponse(benome_errors.Message(err), benome_errors.Code(err)))
}

// writeConversationError hides whether a conversation exists from non-participants.
func writeConversationError(c *gin.Context, err error) {
	if errors.Is(err, benome_errors.ErrNotAuthorized) {
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse("conversation not found", "NOT_FOUND"))
		return
	}
	writeError(c, err)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(msg, "INVALID_REQUEST"))
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := services.UserIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return uuid.Nil, false
	}
	return userID, true
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
