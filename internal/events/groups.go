package events

import (
	"strings"

	"github.com/google/uuid"
)

// Group names. Every connection belongs to its user's group; conversation
// groups are joined explicitly.
const (
	UserGroupPrefix         = "user:"
	ConversationGroupPrefix = "conversation:"
)

// Redis channels used by the cross-node relay.
const (
	ChannelPrefixGroup = "channel:group:"
	ChannelBroadcast   = "channel:broadcast"
)

func UserGroup(userID uuid.UUID) string {
	return UserGroupPrefix + userID.String()
}

func ConversationGroup(conversationID uuid.UUID) string {
	return ConversationGroupPrefix + conversationID.String()
}

// ParseConversationGroup returns the conversation id of a conversation group.
func ParseConversationGroup(group string) (uuid.UUID, bool) {
	if !strings.HasPrefix(group, ConversationGroupPrefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(group, ConversationGroupPrefix))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// RelayChannel maps a group to its relay channel. An empty group means every
// connection and maps to ChannelBroadcast.
func RelayChannel(group string) string {
	if group == "" {
		return ChannelBroadcast
	}
	return ChannelPrefixGroup + group
}
