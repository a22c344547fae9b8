package httpdto

import (
	"time"

	"benome-realtime/internal/domain/conversation"
	"benome-realtime/internal/events"
)

// StartConversationRequest is used for POST /v1/conversations
type StartConversationRequest struct {
	ParticipantID  string `json:"participantId" binding:"required"`
	ListingID      string `json:"listingId,omitempty"`
	InitialMessage string `json:"initialMessage"`
	AttachmentURL  string `json:"attachmentUrl,omitempty"`
}

type StartConversationResponse struct {
	Conversation ConversationDTO    `json:"conversation"`
	Created      bool               `json:"created"`
	Message      events.MessageView `json:"message"`
}

type ConversationDTO struct {
	ID             string    `json:"id"`
	Participant1ID string    `json:"participant1Id"`
	Participant2ID string    `json:"participant2Id"`
	ListingID      string    `json:"listingId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type OtherUserDTO struct {
	ID             string `json:"id"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	IsOnline       bool   `json:"isOnline"`
}

type LastMessageDTO struct {
	Content   string    `json:"content"`
	SenderID  string    `json:"senderId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConversationSummaryDTO is one row of GET /v1/conversations
type ConversationSummaryDTO struct {
	ConversationDTO
	OtherUser   OtherUserDTO    `json:"otherUser"`
	LastMessage *LastMessageDTO `json:"lastMessage,omitempty"`
	UnreadCount int64           `json:"unreadCount"`
}

type ListConversationsResponse struct {
	Conversations []ConversationSummaryDTO `json:"conversations"`
}

func FromConversation(c conversation.Conversation) ConversationDTO {
	dto := ConversationDTO{
		ID:             c.ID.String(),
		Participant1ID: c.Participant1ID.String(),
		Participant2ID: c.Participant2ID.String(),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if c.ListingID.Valid {
		dto.ListingID = c.ListingID.UUID.String()
	}
	return dto
}

func FromConversationSummary(s conversation.Summary) ConversationSummaryDTO {
	dto := ConversationSummaryDTO{
		ConversationDTO: FromConversation(s.Conversation),
		OtherUser: OtherUserDTO{
			ID:             s.OtherUserID.String(),
			FirstName:      s.OtherFirstName,
			LastName:       s.OtherLastName,
			ProfilePicture: s.OtherProfilePicture.String,
			IsOnline:       s.OtherIsOnline,
		},
		UnreadCount: s.UnreadCount,
	}
	if s.LastMessageAt.Valid {
		last := &LastMessageDTO{
			Content:   s.LastMessageContent.String,
			CreatedAt: s.LastMessageAt.Time,
		}
		if s.LastMessageSenderID.Valid {
			last.SenderID = s.LastMessageSenderID.UUID.String()
		}
		dto.LastMessage = last
	}
	return dto
}
