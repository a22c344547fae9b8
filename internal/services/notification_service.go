package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"benome-realtime/internal/domain/notification"
	"benome-realtime/internal/events"
	"benome-realtime/internal/repository"
	benome_errors "benome-realtime/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// NewNotification is a notification request from an internal producer.
type NewNotification struct {
	UserID   uuid.UUID         `json:"userId"`
	Type     notification.Type `json:"type"`
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Link     string            `json:"link,omitempty"`
	Metadata map[string]any    `json:"metadata,omitempty"`
}

func (n NewNotification) Validate() error {
	if n.UserID == uuid.Nil {
		return benome_errors.Validation("notification user is required")
	}
	if !n.Type.Valid() {
		return benome_errors.Validation(fmt.Sprintf("unknown notification type %q", n.Type))
	}
	if strings.TrimSpace(n.Title) == "" {
		return benome_errors.Validation("notification title is required")
	}
	if utf8.RuneCountInString(n.Title) > notification.MaxTitleLength {
		return benome_errors.Validation("notification title is too long")
	}
	if strings.TrimSpace(n.Content) == "" {
		return benome_errors.Validation("notification content is required")
	}
	if len(n.Link) > notification.MaxLinkLength {
		return benome_errors.Validation("notification link is too long")
	}
	return nil
}

func (n NewNotification) entity() notification.Notification {
	metadata := datatypes.JSONMap{}
	for k, v := range n.Metadata {
		metadata[k] = v
	}
	return notification.Notification{
		ID:       uuid.New(),
		UserID:   n.UserID,
		Type:     n.Type,
		Title:    strings.TrimSpace(n.Title),
		Content:  strings.TrimSpace(n.Content),
		Link:     sql.NullString{String: n.Link, Valid: n.Link != ""},
		Metadata: metadata,
	}
}

type NotificationPage struct {
	Items []notification.Notification
	Total int64
	Page  int
	Limit int
	Pages int
}

type NotificationService struct {
	tx            repository.Transactor
	notifications repository.NotificationRepository
	broadcaster   Broadcaster
	logger        *zap.Logger
}

func NewNotificationService(tx repository.Transactor, notifications repository.NotificationRepository, broadcaster Broadcaster, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		tx:            tx,
		notifications: notifications,
		broadcaster:   broadcaster,
		logger:        logger,
	}
}

// Create stores a notification and pushes it to the recipient's live
// connections. An offline recipient finds it in their list later.
func (s *NotificationService) Create(ctx context.Context, in NewNotification) (notification.Notification, error) {
	if err := in.Validate(); err != nil {
		return notification.Notification{}, err
	}

	n := in.entity()
	if err := s.notifications.Create(ctx, &n); err != nil {
		return notification.Notification{}, benome_errors.Persistence("create notification", err)
	}

	s.push(ctx, n)
	return n, nil
}

// CreateBulk validates every request, stores them all in one statement and
// only then pushes each one. Either all rows are stored or none.
func (s *NotificationService) CreateBulk(ctx context.Context, in []NewNotification) ([]notification.Notification, error) {
	if len(in) == 0 {
		return nil, nil
	}
	for i, req := range in {
		if err := req.Validate(); err != nil {
			return nil, benome_errors.Wrap(benome_errors.ErrValidation, fmt.Sprintf("notification %d", i), err)
		}
	}

	batch := make([]notification.Notification, 0, len(in))
	for _, req := range in {
		batch = append(batch, req.entity())
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return s.notifications.CreateBatch(ctx, batch)
	})
	if err != nil {
		return nil, benome_errors.Persistence("create notifications", err)
	}

	for _, n := range batch {
		s.push(ctx, n)
	}
	return batch, nil
}

func (s *NotificationService) push(ctx context.Context, n notification.Notification) {
	publishEvent(ctx, s.broadcaster, s.logger, events.UserGroup(n.UserID), events.NewNotification, events.NewNotificationView(n))
}

// MarkRead flags one of the user's notifications. Someone else's notification
// is reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID uuid.UUID) (notification.Notification, error) {
	n, err := s.notifications.MarkRead(ctx, id, userID)
	if err != nil {
		return notification.Notification{}, benome_errors.Persistence("mark notification read", err)
	}
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	marked, err := s.notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, benome_errors.Persistence("mark all notifications read", err)
	}
	return marked, nil
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, page, limit int, unreadOnly bool) (NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	items, total, err := s.notifications.List(ctx, userID, page, limit, unreadOnly)
	if err != nil {
		return NotificationPage{}, benome_errors.Persistence("list notifications", err)
	}
	return NotificationPage{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: int((total + int64(limit) - 1) / int64(limit)),
	}, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, benome_errors.Persistence("count unread notifications", err)
	}
	return count, nil
}

// PurgeOlderThan deletes notifications older than the given number of days.
func (s *NotificationService) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, benome_errors.Validation("retention must be at least one day")
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	deleted, err := s.notifications.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, benome_errors.Persistence("purge notifications", err)
	}
	s.logger.Info("purged notifications", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	return deleted, nil
}

// NewMessageNotification builds the NEW_MESSAGE notification for a message's recipient.
func NewMessageNotification(recipientID uuid.UUID, msg events.MessageView) NewNotification {
	return NewNotification{
		UserID:  recipientID,
		Type:    notification.TypeNewMessage,
		Title:   "New Message",
		Content: fmt.Sprintf("New message from %s", msg.Sender.FirstName),
		Link:    fmt.Sprintf("/messages/%s", msg.ConversationID),
		Metadata: map[string]any{
			"conversationId": msg.ConversationID.String(),
			"messageId":      msg.ID.String(),
			"senderId":       msg.SenderID.String(),
		},
	}
}

// NotifyNewMessage creates the recipient's NEW_MESSAGE notification in-process.
// Deployments with a job queue hand this to the queue instead.
func (s *NotificationService) NotifyNewMessage(ctx context.Context, recipientID uuid.UUID, msg events.MessageView) error {
	_, err := s.Create(ctx, NewMessageNotification(recipientID, msg))
	return err
}
