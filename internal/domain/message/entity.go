package message

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const (
	MaxContentLength       = 1000
	MaxAttachmentRefLength = 2048
)

// Message represents the messages table. Immutable except for IsRead.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	SenderID       uuid.UUID
	Content        string
	AttachmentURL  sql.NullString
	IsRead         bool
	CreatedAt      time.Time
}

func (Message) TableName() string {
	return "messages"
}

// Detailed is a message joined with the sender's display fields.
type Detailed struct {
	Message

	SenderFirstName      string
	SenderLastName       string
	SenderProfilePicture sql.NullString
}
