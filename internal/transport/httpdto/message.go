package httpdto

import "benome-realtime/internal/events"

// SendMessageRequest is used for POST /v1/conversations/:id/messages
type SendMessageRequest struct {
	Content       string `json:"content"`
	AttachmentURL string `json:"attachmentUrl,omitempty"`
}

// ListMessagesRequest holds query parameters for message history
type ListMessagesRequest struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

type ListMessagesResponse struct {
	Messages []events.MessageView `json:"messages"`
}
