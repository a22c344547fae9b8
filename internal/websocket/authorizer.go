package websocket

import (
	"context"
	"strings"

	"benome-realtime/internal/events"
	"benome-realtime/internal/services"

	"github.com/google/uuid"
)

// GroupAuthorizer decides which groups a connection may join.
type GroupAuthorizer struct {
	membership services.Membership
}

func NewGroupAuthorizer(membership services.Membership) *GroupAuthorizer {
	return &GroupAuthorizer{membership: membership}
}

// CanJoin checks if a user is allowed into a group
func (a *GroupAuthorizer) CanJoin(ctx context.Context, userID uuid.UUID, group string) bool {
	// a user's own group only
	if strings.HasPrefix(group, events.UserGroupPrefix) {
		return group == events.UserGroup(userID)
	}

	if convID, ok := events.ParseConversationGroup(group); ok {
		return a.membership.IsParticipant(ctx, userID, convID)
	}

	// Default deny
	return false
}
