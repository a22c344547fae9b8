package events

import (
	"encoding/json"
	"fmt"
	"time"

	"benome-realtime/internal/domain/message"
	"benome-realtime/internal/domain/notification"

	"github.com/google/uuid"
)

// Client to server events
const (
	JoinConversation  = "join_conversation"
	LeaveConversation = "leave_conversation"
	SendMessage       = "send_message"
	TypingStart       = "typing_start"
	TypingStop        = "typing_stop"
	Ping              = "ping"
)

// Server to client events
const (
	MessageSent            = "message_sent"
	NewMessage             = "new_message"
	NewConversationMessage = "new_conversation_message"
	NewNotification        = "new_notification"
	UserOnline             = "user_online"
	UserOffline            = "user_offline"
	UserTyping             = "user_typing"
	UserStoppedTyping      = "user_stopped_typing"
	Error                  = "error"
	Pong                   = "pong"
)

// Frame is the JSON object carried by every websocket text message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds a frame for event with data as its payload.
func Encode(event string, data any) ([]byte, error) {
	frame := Frame{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		frame.Data = raw
	}
	return json.Marshal(frame)
}

// Decode unmarshals the frame's data into v.
func (f Frame) Decode(v any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%s: missing data", f.Event)
	}
	return json.Unmarshal(f.Data, v)
}

type ConversationRef struct {
	ConversationID uuid.UUID `json:"conversationId"`
}

type SendMessagePayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	Content        string    `json:"content"`
	AttachmentURL  string    `json:"attachmentUrl,omitempty"`
	ClientRef      string    `json:"clientRef,omitempty"`
}

type SenderView struct {
	ID             uuid.UUID `json:"id"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
}

// MessageView is the wire shape of a message on both the socket and REST.
type MessageView struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversationId"`
	SenderID       uuid.UUID  `json:"senderId"`
	Content        string     `json:"content"`
	AttachmentURL  string     `json:"attachmentUrl,omitempty"`
	IsRead         bool       `json:"isRead"`
	CreatedAt      time.Time  `json:"createdAt"`
	Sender         SenderView `json:"sender"`
}

func NewMessageView(m message.Detailed) MessageView {
	return MessageView{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		AttachmentURL:  m.AttachmentURL.String,
		IsRead:         m.IsRead,
		CreatedAt:      m.CreatedAt,
		Sender: SenderView{
			ID:             m.SenderID,
			FirstName:      m.SenderFirstName,
			LastName:       m.SenderLastName,
			ProfilePicture: m.SenderProfilePicture.String,
		},
	}
}

type MessageSentPayload struct {
	ClientRef string      `json:"clientRef,omitempty"`
	Message   MessageView `json:"message"`
}

type ConversationMessagePayload struct {
	ConversationID uuid.UUID   `json:"conversationId"`
	Message        MessageView `json:"message"`
}

type NotificationView struct {
	ID        uuid.UUID         `json:"id"`
	Type      notification.Type `json:"type"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Link      string            `json:"link,omitempty"`
	Metadata  map[string]any    `json:"metadata,omitempty"`
	IsRead    bool              `json:"isRead"`
	CreatedAt time.Time         `json:"createdAt"`
}

func NewNotificationView(n notification.Notification) NotificationView {
	return NotificationView{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Content:   n.Content,
		Link:      n.Link.String,
		Metadata:  n.Metadata,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

type PresencePayload struct {
	UserID uuid.UUID `json:"userId"`
}

type TypingPayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
	FirstName      string    `json:"firstName,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}
