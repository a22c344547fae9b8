package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"benome-realtime/internal/domain/conversation"
	"benome-realtime/internal/domain/message"
	"benome-realtime/internal/events"
	"benome-realtime/internal/redis"
	"benome-realtime/internal/repository"
	benome_errors "benome-realtime/pkg/errors"
	"benome-realtime/pkg/keylock"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReadPolicy decides which counterpart messages a history read marks as read.
type ReadPolicy string

const (
	// ReadPolicyPage marks messages created at or before the newest one returned.
	ReadPolicyPage ReadPolicy = "page"
	// ReadPolicyAll marks every unread counterpart message in the conversation.
	ReadPolicyAll ReadPolicy = "all"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
)

type SendLimiter interface {
	AllowMessage(ctx context.Context, userID string) (*redis.RateLimitResult, error)
}

// MessageNotifier hands the counterpart's NEW_MESSAGE notification off after a
// message is broadcast.
type MessageNotifier interface {
	NotifyNewMessage(ctx context.Context, recipientID uuid.UUID, msg events.MessageView) error
}

type MessageServiceDeps struct {
	Transactor    repository.Transactor
	Messages      repository.MessageRepository
	Conversations repository.ConversationRepository
	Membership    Membership
	Profiles      ProfileSource
	Broadcaster   Broadcaster
	Limiter       SendLimiter
	Notifier      MessageNotifier
	Logger        *zap.Logger
}

type MessageService struct {
	tx             repository.Transactor
	messages       repository.MessageRepository
	conversations  repository.ConversationRepository
	membership     Membership
	profiles       ProfileSource
	broadcaster    Broadcaster
	limiter        SendLimiter
	notifier       MessageNotifier
	locks          *keylock.KeyedMutex
	persistTimeout time.Duration
	readPolicy     ReadPolicy
	logger         *zap.Logger
}

func NewMessageService(deps MessageServiceDeps, persistTimeout time.Duration, readPolicy ReadPolicy) *MessageService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if persistTimeout <= 0 {
		persistTimeout = 10 * time.Second
	}
	if readPolicy != ReadPolicyAll {
		readPolicy = ReadPolicyPage
	}
	return &MessageService{
		tx:             deps.Transactor,
		messages:       deps.Messages,
		conversations:  deps.Conversations,
		membership:     deps.Membership,
		profiles:       deps.Profiles,
		broadcaster:    deps.Broadcaster,
		limiter:        deps.Limiter,
		notifier:       deps.Notifier,
		locks:          keylock.New(),
		persistTimeout: persistTimeout,
		readPolicy:     readPolicy,
		logger:         deps.Logger,
	}
}

type SendMessageInput struct {
	SenderID       uuid.UUID
	ConversationID uuid.UUID
	Content        string
	AttachmentURL  string
}

// normalizeContent trims and validates message content and attachment.
func normalizeContent(content, attachmentURL string) (string, string, error) {
	content = strings.TrimSpace(content)
	attachmentURL = strings.TrimSpace(attachmentURL)
	if content == "" {
		return "", "", benome_errors.Validation("message content is required")
	}
	if utf8.RuneCountInString(content) > message.MaxContentLength {
		return "", "", benome_errors.Validation(fmt.Sprintf("message content must be at most %d characters", message.MaxContentLength))
	}
	if len(attachmentURL) > message.MaxAttachmentRefLength {
		return "", "", benome_errors.Validation("attachment reference is too long")
	}
	return content, attachmentURL, nil
}

// SendMessage validates, authorizes, persists and broadcasts a message, then
// returns the stored message. Nothing is broadcast unless the message and the
// conversation's last-message pointer were both committed.
func (s *MessageService) SendMessage(ctx context.Context, in SendMessageInput) (events.MessageView, error) {
	content, attachmentURL, err := normalizeContent(in.Content, in.AttachmentURL)
	if err != nil {
		return events.MessageView{}, err
	}

	if !s.membership.IsParticipant(ctx, in.SenderID, in.ConversationID) {
		return events.MessageView{}, benome_errors.NotAuthorized("not a participant of this conversation")
	}

	if err := s.allow(ctx, in.SenderID); err != nil {
		return events.MessageView{}, err
	}

	sender, err := s.profiles.Get(ctx, in.SenderID)
	if err != nil {
		s.logger.Warn("sender profile unavailable", zap.String("user_id", in.SenderID.String()), zap.Error(err))
		sender = redis.CachedProfile{ID: in.SenderID}
	}

	msg := message.Message{
		ID:             uuid.New(),
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        content,
		AttachmentURL:  sql.NullString{String: attachmentURL, Valid: attachmentURL != ""},
	}

	view, recipientID, err := s.persistAndBroadcast(ctx, msg, sender)
	if err != nil {
		return events.MessageView{}, err
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyNewMessage(context.WithoutCancel(ctx), recipientID, view); err != nil {
			s.logger.Warn("new message notification failed",
				zap.String("message_id", view.ID.String()),
				zap.String("recipient_id", recipientID.String()),
				zap.Error(err),
			)
		}
	}

	return view, nil
}

// persistAndBroadcast holds the conversation's lock from commit through
// broadcast, so broadcasts in a conversation follow commit order.
func (s *MessageService) persistAndBroadcast(ctx context.Context, msg message.Message, sender redis.CachedProfile) (events.MessageView, uuid.UUID, error) {
	unlock := s.locks.Lock(msg.ConversationID.String())
	defer unlock()

	// a disconnecting client must not roll back a send that is under way
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
	defer cancel()

	msg.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	var conv conversation.Conversation
	err := s.tx.WithinTransaction(persistCtx, func(ctx context.Context) error {
		if err := s.messages.Create(ctx, &msg); err != nil {
			return err
		}
		var err error
		conv, err = s.conversations.UpdateLastMessage(ctx, msg.ConversationID, msg.ID, msg.CreatedAt)
		return err
	})
	if err != nil {
		s.logger.Error("failed to persist message",
			zap.String("conversation_id", msg.ConversationID.String()),
			zap.String("sender_id", msg.SenderID.String()),
			zap.Error(err),
		)
		return events.MessageView{}, uuid.Nil, benome_errors.Persistence("send message", err)
	}

	view := events.NewMessageView(message.Detailed{
		Message:              msg,
		SenderFirstName:      sender.FirstName,
		SenderLastName:       sender.LastName,
		SenderProfilePicture: sql.NullString{String: sender.ProfilePictureURL, Valid: sender.ProfilePictureURL != ""},
	})
	recipientID := conv.Counterpart(msg.SenderID)

	publishEvent(ctx, s.broadcaster, s.logger, events.ConversationGroup(msg.ConversationID), events.NewMessage, view)
	publishEvent(ctx, s.broadcaster, s.logger, events.UserGroup(recipientID), events.NewConversationMessage, events.ConversationMessagePayload{
		ConversationID: msg.ConversationID,
		Message:        view,
	})

	return view, recipientID, nil
}

func (s *MessageService) allow(ctx context.Context, userID uuid.UUID) error {
	if s.limiter == nil {
		return nil
	}
	res, err := s.limiter.AllowMessage(ctx, userID.String())
	if err != nil {
		s.logger.Warn("message rate limit check failed", zap.String("user_id", userID.String()), zap.Error(err))
		return nil
	}
	if !res.Allowed {
		return benome_errors.New(benome_errors.ErrRateLimited, fmt.Sprintf("too many messages, retry in %s", res.ResetIn))
	}
	return nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return page, limit
}

// FetchHistory returns one page of a conversation, oldest first. It does not
// change read state.
func (s *MessageService) FetchHistory(ctx context.Context, conversationID, userID uuid.UUID, page, limit int) ([]events.MessageView, error) {
	if !s.membership.IsParticipant(ctx, userID, conversationID) {
		return nil, benome_errors.NotAuthorized("not a participant of this conversation")
	}

	page, limit = normalizePage(page, limit)
	rows, err := s.messages.ListByConversation(ctx, conversationID, page, limit)
	if err != nil {
		return nil, benome_errors.Persistence("fetch history", err)
	}

	views := make([]events.MessageView, 0, len(rows))
	for _, row := range rows {
		views = append(views, events.NewMessageView(row))
	}
	return views, nil
}

// MarkReadFor flags the counterpart's messages as read for readerID. With a
// nil upTo every unread counterpart message is marked. The reader's own
// messages are never touched.
func (s *MessageService) MarkReadFor(ctx context.Context, conversationID, readerID uuid.UUID, upTo *time.Time) (int64, error) {
	if !s.membership.IsParticipant(ctx, readerID, conversationID) {
		return 0, benome_errors.NotAuthorized("not a participant of this conversation")
	}
	marked, err := s.messages.MarkRead(ctx, conversationID, readerID, upTo)
	if err != nil {
		return 0, benome_errors.Persistence("mark messages read", err)
	}
	return marked, nil
}

// History fetches a page and then marks messages read according to the read
// policy. The returned rows show the read state from before the marking.
func (s *MessageService) History(ctx context.Context, conversationID, userID uuid.UUID, page, limit int) ([]events.MessageView, error) {
	views, err := s.FetchHistory(ctx, conversationID, userID, page, limit)
	if err != nil {
		return nil, err
	}

	var upTo *time.Time
	if s.readPolicy == ReadPolicyPage {
		if len(views) == 0 {
			return views, nil
		}
		newest := views[len(views)-1].CreatedAt
		upTo = &newest
	}

	if _, err := s.MarkReadFor(ctx, conversationID, userID, upTo); err != nil {
		return nil, err
	}
	return views, nil
}
