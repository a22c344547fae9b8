package handler

import (
	"context"
	"net/http"

	"benome-realtime/internal/domain/conversation"
	"benome-realtime/internal/services"
	"benome-realtime/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ConversationStarter interface {
	ListConversations(ctx context.Context, userID uuid.UUID) ([]conversation.Summary, error)
	StartConversation(ctx context.Context, in services.StartConversationInput) (services.StartConversationResult, error)
}

type ConversationHandler struct {
	service ConversationStarter
}

func NewConversationHandler(service ConversationStarter) *ConversationHandler {
	return &ConversationHandler{service: service}
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	rows, err := h.service.ListConversations(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	items := make([]httpdto.ConversationSummaryDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, httpdto.FromConversationSummary(row))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.ListConversationsResponse{Conversations: items}))
}

func (h *ConversationHandler) Start(c *gin.Context) {
	var req httpdto.StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	starterID, ok := currentUser(c)
	if !ok {
		return
	}

	participantID, err := uuid.Parse(req.ParticipantID)
	if err != nil {
		badRequest(c, "invalid participantId")
		return
	}
	var listingID uuid.NullUUID
	if req.ListingID != "" {
		id, err := uuid.Parse(req.ListingID)
		if err != nil {
			badRequest(c, "invalid listingId")
			return
		}
		listingID = uuid.NullUUID{UUID: id, Valid: true}
	}

	res, err := h.service.StartConversation(c.Request.Context(), services.StartConversationInput{
		StarterID:      starterID,
		ParticipantID:  participantID,
		ListingID:      listingID,
		InitialMessage: req.InitialMessage,
		AttachmentURL:  req.AttachmentURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, httpdto.NewSuccessResponse(httpdto.StartConversationResponse{
		Conversation: httpdto.FromConversation(res.Conversation),
		Created:      res.Created,
		Message:      res.Message,
	}))
}
