package repository

import (
	"context"
	"time"

	"benome-realtime/internal/domain/message"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func (r *PostgresMessageRepository) Create(ctx context.Context, m *message.Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return classify("create message", conn(ctx, r.db).Create(m).Error)
}

func (r *PostgresMessageRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]message.Detailed, error) {
	var rows []message.Detailed
	err := conn(ctx, r.db).
		Table("messages AS m").
		Select(`m.id, m.conversation_id, m.sender_id, m.content, m.attachment_url, m.is_read, m.created_at,
			u.first_name AS sender_first_name,
			u.last_name AS sender_last_name,
			u.profile_picture_url AS sender_profile_picture`).
		Joins("JOIN users u ON u.id = m.sender_id").
		Where("m.conversation_id = ?", conversationID).
		Order("m.created_at DESC, m.id DESC").
		Offset(offset(page, limit)).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, classify("list messages", err)
	}

	// newest-first from the query, callers want chronological order
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (r *PostgresMessageRepository) MarkRead(ctx context.Context, conversationID, readerID uuid.UUID, upTo *time.Time) (int64, error) {
	q := conn(ctx, r.db).
		Model(&message.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = FALSE", conversationID, readerID)
	if upTo != nil {
		q = q.Where("created_at <= ?", *upTo)
	}
	res := q.Update("is_read", true)
	if res.Error != nil {
		return 0, classify("mark messages read", res.Error)
	}
	return res.RowsAffected, nil
}
