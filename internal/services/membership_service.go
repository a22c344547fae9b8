package services

import (
	"context"

	"benome-realtime/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Membership interface {
	IsParticipant(ctx context.Context, userID, conversationID uuid.UUID) bool
}

// MembershipService answers whether a user belongs to a conversation. It never
// mutates anything and fails closed: a lookup error is a "no".
type MembershipService struct {
	conversations repository.ConversationRepository
	logger        *zap.Logger
}

func NewMembershipService(conversations repository.ConversationRepository, logger *zap.Logger) *MembershipService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MembershipService{conversations: conversations, logger: logger}
}

func (s *MembershipService) IsParticipant(ctx context.Context, userID, conversationID uuid.UUID) bool {
	if userID == uuid.Nil || conversationID == uuid.Nil {
		return false
	}
	ok, err := s.conversations.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		s.logger.Error("membership lookup failed",
			zap.String("user_id", userID.String()),
			zap.String("conversation_id", conversationID.String()),
			zap.Error(err),
		)
		return false
	}
	return ok
}
