package repository

import (
	"context"
	"time"

	"benome-realtime/internal/domain/conversation"
	benome_errors "benome-realtime/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := conn(ctx, r.db).
		Model(&conversation.Conversation{}).
		Where("id = ? AND (participant1_id = ? OR participant2_id = ?)", conversationID, userID, userID).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, classify("check participant", err)
	}
	return count > 0, nil
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	if err := conn(ctx, r.db).Where("id = ?", id).First(&c).Error; err != nil {
		return conversation.Conversation{}, classify("get conversation", err)
	}
	return c, nil
}

// FindBetween returns the pair's conversation about listingID. Without a
// listing any conversation between the two matches, most recent first.
func (r *PostgresConversationRepository) FindBetween(ctx context.Context, a, b uuid.UUID, listingID uuid.NullUUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	q := conn(ctx, r.db).
		Where("((participant1_id = ? AND participant2_id = ?) OR (participant1_id = ? AND participant2_id = ?))", a, b, b, a)
	if listingID.Valid {
		q = q.Where("listing_id = ?", listingID.UUID)
	}
	err := q.Order("updated_at DESC").First(&c).Error
	if err != nil {
		return conversation.Conversation{}, classify("find conversation", err)
	}
	return c, nil
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return classify("create conversation", conn(ctx, r.db).Create(c).Error)
}

// UpdateLastMessage moves the last-message pointer and returns the updated row.
func (r *PostgresConversationRepository) UpdateLastMessage(ctx context.Context, conversationID, messageID uuid.UUID, at time.Time) (conversation.Conversation, error) {
	var c conversation.Conversation
	res := conn(ctx, r.db).
		Model(&c).
		Clauses(clause.Returning{}).
		Where("id = ?", conversationID).
		Updates(map[string]any{
			"last_message_id": messageID,
			"updated_at":      at,
		})
	if res.Error != nil {
		return conversation.Conversation{}, classify("update last message", res.Error)
	}
	if res.RowsAffected == 0 {
		return conversation.Conversation{}, benome_errors.ErrNotFound
	}
	return c, nil
}

const listForUserQuery = `
SELECT
	c.id, c.participant1_id, c.participant2_id, c.listing_id, c.last_message_id, c.created_at, c.updated_at,
	u.id AS other_user_id,
	u.first_name AS other_first_name,
	u.last_name AS other_last_name,
	u.profile_picture_url AS other_profile_picture,
	u.is_online AS other_is_online,
	m.content AS last_message_content,
	m.created_at AS last_message_at,
	m.sender_id AS last_message_sender_id,
	(
		SELECT COUNT(*) FROM messages um
		WHERE um.conversation_id = c.id AND um.sender_id <> @user AND um.is_read = FALSE
	) AS unread_count
FROM conversations c
JOIN users u ON u.id = CASE WHEN c.participant1_id = @user THEN c.participant2_id ELSE c.participant1_id END
LEFT JOIN messages m ON m.id = c.last_message_id
WHERE c.participant1_id = @user OR c.participant2_id = @user
ORDER BY c.updated_at DESC`

func (r *PostgresConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Summary, error) {
	var rows []conversation.Summary
	err := conn(ctx, r.db).
		Raw(listForUserQuery, map[string]any{"user": userID}).
		Scan(&rows).Error
	if err != nil {
		return nil, classify("list conversations", err)
	}
	return rows, nil
}
