package handler

import (
	"context"
	"net/http"

	"benome-realtime/internal/events"
	"benome-realtime/internal/services"
	"benome-realtime/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type MessagePipeline interface {
	SendMessage(ctx context.Context, in services.SendMessageInput) (events.MessageView, error)
	History(ctx context.Context, conversationID, userID uuid.UUID, page, limit int) ([]events.MessageView, error)
}

type MessageHandler struct {
	service MessagePipeline
}

func NewMessageHandler(service MessagePipeline) *MessageHandler {
	return &MessageHandler{service: service}
}

// History returns a page of messages and marks the counterpart's messages read.
func (h *MessageHandler) History(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	convID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req httpdto.ListMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "invalid pagination")
		return
	}

	views, err := h.service.History(c.Request.Context(), convID, userID, req.Page, req.Limit)
	if err != nil {
		writeConversationError(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListMessagesResponse{Messages: views}))
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	convID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	view, err := h.service.SendMessage(c.Request.Context(), services.SendMessageInput{
		SenderID:       userID,
		ConversationID: convID,
		Content:        req.Content,
		AttachmentURL:  req.AttachmentURL,
	})
	if err != nil {
		writeConversationError(c, err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(view))
}
