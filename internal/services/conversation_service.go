package services

import (
	"context"
	"errors"

	"benome-realtime/internal/domain/conversation"
	"benome-realtime/internal/events"
	"benome-realtime/internal/repository"
	benome_errors "benome-realtime/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ConversationService struct {
	conversations repository.ConversationRepository
	users         repository.UserRepository
	messages      *MessageService
	logger        *zap.Logger
}

func NewConversationService(conversations repository.ConversationRepository, users repository.UserRepository, messages *MessageService, logger *zap.Logger) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationService{
		conversations: conversations,
		users:         users,
		messages:      messages,
		logger:        logger,
	}
}

// ListConversations returns the user's conversations, most recently active first.
func (s *ConversationService) ListConversations(ctx context.Context, userID uuid.UUID) ([]conversation.Summary, error) {
	rows, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, benome_errors.Persistence("list conversations", err)
	}
	return rows, nil
}

type StartConversationInput struct {
	StarterID      uuid.UUID
	ParticipantID  uuid.UUID
	ListingID      uuid.NullUUID
	InitialMessage string
	AttachmentURL  string
}

type StartConversationResult struct {
	Conversation conversation.Conversation
	Created      bool
	Message      events.MessageView
}

// StartConversation reuses the pair's conversation (about the same listing,
// when one is given) or creates it, then sends the initial message through
// the regular send path.
func (s *ConversationService) StartConversation(ctx context.Context, in StartConversationInput) (StartConversationResult, error) {
	if in.ParticipantID == uuid.Nil {
		return StartConversationResult{}, benome_errors.Validation("participantId is required")
	}
	if in.ParticipantID == in.StarterID {
		return StartConversationResult{}, benome_errors.Validation("cannot start conversation with yourself")
	}
	if _, _, err := normalizeContent(in.InitialMessage, in.AttachmentURL); err != nil {
		return StartConversationResult{}, err
	}

	if _, err := s.users.GetByID(ctx, in.ParticipantID); err != nil {
		if errors.Is(err, benome_errors.ErrNotFound) {
			return StartConversationResult{}, benome_errors.New(benome_errors.ErrNotFound, "user not found")
		}
		return StartConversationResult{}, benome_errors.Persistence("get participant", err)
	}

	conv, created, err := s.findOrCreate(ctx, in)
	if err != nil {
		return StartConversationResult{}, err
	}

	result := StartConversationResult{Conversation: conv, Created: created}
	result.Message, err = s.messages.SendMessage(ctx, SendMessageInput{
		SenderID:       in.StarterID,
		ConversationID: conv.ID,
		Content:        in.InitialMessage,
		AttachmentURL:  in.AttachmentURL,
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

func (s *ConversationService) findOrCreate(ctx context.Context, in StartConversationInput) (conversation.Conversation, bool, error) {
	conv, err := s.conversations.FindBetween(ctx, in.StarterID, in.ParticipantID, in.ListingID)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, benome_errors.ErrNotFound) {
		return conversation.Conversation{}, false, benome_errors.Persistence("find conversation", err)
	}

	conv = conversation.Conversation{
		ID:             uuid.New(),
		Participant1ID: in.StarterID,
		Participant2ID: in.ParticipantID,
		ListingID:      in.ListingID,
	}
	err = s.conversations.Create(ctx, &conv)
	if errors.Is(err, benome_errors.ErrConflict) {
		// lost a race with the other participant
		existing, findErr := s.conversations.FindBetween(ctx, in.StarterID, in.ParticipantID, in.ListingID)
		if findErr != nil {
			return conversation.Conversation{}, false, benome_errors.Persistence("find conversation", findErr)
		}
		return existing, false, nil
	}
	if err != nil {
		return conversation.Conversation{}, false, benome_errors.Persistence("create conversation", err)
	}

	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID.String()),
		zap.String("starter_id", in.StarterID.String()),
	)
	return conv, true, nil
}
