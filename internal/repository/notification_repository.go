package repository

import (
	"context"
	"time"

	"benome-realtime/internal/domain/notification"
	benome_errors "benome-realtime/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresNotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return classify("create notification", conn(ctx, r.db).Create(n).Error)
}

// CreateBatch inserts every row in a single statement: all rows land or none do.
func (r *PostgresNotificationRepository) CreateBatch(ctx context.Context, ns []notification.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	for i := range ns {
		if ns[i].ID == uuid.Nil {
			ns[i].ID = uuid.New()
		}
	}
	return classify("create notifications", conn(ctx, r.db).Create(&ns).Error)
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID) (notification.Notification, error) {
	var n notification.Notification
	res := conn(ctx, r.db).
		Model(&n).
		Clauses(clause.Returning{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return notification.Notification{}, classify("mark notification read", res.Error)
	}
	if res.RowsAffected == 0 {
		return notification.Notification{}, benome_errors.ErrNotFound
	}
	return n, nil
}

func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	res := conn(ctx, r.db).
		Model(&notification.Notification{}).
		Where("user_id = ? AND is_read = FALSE", userID).
		Update("is_read", true)
	if res.Error != nil {
		return 0, classify("mark all notifications read", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *PostgresNotificationRepository) List(ctx context.Context, userID uuid.UUID, page, limit int, unreadOnly bool) ([]notification.Notification, int64, error) {
	var items []notification.Notification
	var total int64

	scope := func() *gorm.DB {
		q := conn(ctx, r.db).
			Model(&notification.Notification{}).
			Where("user_id = ?", userID)
		if unreadOnly {
			q = q.Where("is_read = FALSE")
		}
		return q
	}

	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, classify("count notifications", err)
	}

	if err := scope().
		Order("created_at DESC, id DESC").
		Offset(offset(page, limit)).
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, 0, classify("list notifications", err)
	}

	return items, total, nil
}

func (r *PostgresNotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := conn(ctx, r.db).
		Model(&notification.Notification{}).
		Where("user_id = ? AND is_read = FALSE", userID).
		Count(&count).Error
	if err != nil {
		return 0, classify("count unread notifications", err)
	}
	return count, nil
}

func (r *PostgresNotificationRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := conn(ctx, r.db).
		Where("created_at < ?", cutoff).
		Delete(&notification.Notification{})
	if res.Error != nil {
		return 0, classify("delete old notifications", res.Error)
	}
	return res.RowsAffected, nil
}
