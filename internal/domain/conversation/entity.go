package conversation

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Conversation represents the conversations table. Always exactly two participants.
type Conversation struct {
	ID             uuid.UUID
	Participant1ID uuid.UUID `gorm:"column:participant1_id"`
	Participant2ID uuid.UUID `gorm:"column:participant2_id"`
	ListingID      uuid.NullUUID
	LastMessageID  uuid.NullUUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Conversation) TableName() string {
	return "conversations"
}

func (c Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.Participant1ID == userID || c.Participant2ID == userID
}

// Counterpart returns the other participant. userID must be a participant.
func (c Conversation) Counterpart(userID uuid.UUID) uuid.UUID {
	if c.Participant1ID == userID {
		return c.Participant2ID
	}
	return c.Participant1ID
}

// Summary is a conversation as listed for one of its participants.
type Summary struct {
	Conversation

	OtherUserID         uuid.UUID
	OtherFirstName      string
	OtherLastName       string
	OtherProfilePicture sql.NullString
	OtherIsOnline       bool

	LastMessageContent  sql.NullString
	LastMessageAt       sql.NullTime
	LastMessageSenderID uuid.NullUUID
	UnreadCount         int64
}
