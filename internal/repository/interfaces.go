package repository

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_repository.go -package=mocks

import (
	"context"
	"time"

	"benome-realtime/internal/domain/conversation"
	"benome-realtime/internal/domain/message"
	"benome-realtime/internal/domain/notification"
	"benome-realtime/internal/domain/user"

	"github.com/google/uuid"
)

// Transactor runs fn inside one database transaction. Repository calls made
// with the ctx handed to fn join that transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (user.User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]user.User, error)
	// SetOnlineStatus with a non-zero version applies only when version is newer
	// than the stored one and reports ErrConflict otherwise.
	SetOnlineStatus(ctx context.Context, id uuid.UUID, online bool, at time.Time, version int64) error
}

type ConversationRepository interface {
	IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	FindBetween(ctx context.Context, a, b uuid.UUID, listingID uuid.NullUUID) (conversation.Conversation, error)
	Create(ctx context.Context, c *conversation.Conversation) error
	UpdateLastMessage(ctx context.Context, conversationID, messageID uuid.UUID, at time.Time) (conversation.Conversation, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Summary, error)
}

type MessageRepository interface {
	Create(ctx context.Context, msg *message.Message) error
	// ListByConversation returns one page, oldest first. Page 1 holds the newest messages.
	ListByConversation(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]message.Detailed, error)
	// MarkRead flags messages not sent by readerID. A nil upTo marks the whole conversation.
	MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, upTo *time.Time) (int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *notification.Notification) error
	CreateBatch(ctx context.Context, ns []notification.Notification) error
	MarkRead(ctx context.Context, id, userID uuid.UUID) (notification.Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	List(ctx context.Context, userID uuid.UUID, page, limit int, unreadOnly bool) ([]notification.Notification, int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
