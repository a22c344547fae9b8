package handler

import (
	"context"
	"net/http"

	"benome-realtime/internal/domain/notification"
	"benome-realtime/internal/events"
	"benome-realtime/internal/services"
	"benome-realtime/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type NotificationReader interface {
	List(ctx context.Context, userID uuid.UUID, page, limit int, unreadOnly bool) (services.NotificationPage, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) (notification.Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
}

type NotificationHandler struct {
	service NotificationReader
}

func NewNotificationHandler(service NotificationReader) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req httpdto.ListNotificationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid query")
		return
	}

	page, err := h.service.List(c.Request.Context(), userID, req.Page, req.Limit, req.UnreadOnly)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromNotificationPage(page)))
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	count, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.UnreadCountResponse{Count: count}))
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	n, err := h.service.MarkRead(c.Request.Context(), id, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(events.NewNotificationView(n)))
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	updated, err := h.service.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkAllReadResponse{Updated: updated}))
}
