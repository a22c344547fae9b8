package services

import (
	"context"
	"testing"
	"time"

	"benome-realtime/internal/domain/conversation"
	"benome-realtime/internal/domain/user"
	"benome-realtime/internal/repository/mocks"
	benome_errors "benome-realtime/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type conversationFixture struct {
	*messageFixture
	users *mocks.MockUserRepository
	svc   *ConversationService
}

func newConversationFixture(t *testing.T) *conversationFixture {
	mf := newMessageFixture(t, ReadPolicyPage)
	users := mocks.NewMockUserRepository(mf.ctrl)
	return &conversationFixture{
		messageFixture: mf,
		users:          users,
		svc:            NewConversationService(mf.conversations, users, mf.svc, nil),
	}
}

func (f *conversationFixture) expectSendInto(convID uuid.UUID) {
	f.conversations.EXPECT().IsParticipant(gomock.Any(), convID, f.alice).Return(true, nil)
	f.messages.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	f.conversations.EXPECT().UpdateLastMessage(gomock.Any(), convID, gomock.Any(), gomock.Any()).
		Return(conversation.Conversation{ID: convID, Participant1ID: f.alice, Participant2ID: f.bob}, nil)
}

func TestStartConversationValidation(t *testing.T) {
	f := newConversationFixture(t)
	ctx := context.Background()

	_, err := f.svc.StartConversation(ctx, StartConversationInput{StarterID: f.alice, InitialMessage: "hi"})
	assert.ErrorIs(t, err, benome_errors.ErrValidation)

	_, err = f.svc.StartConversation(ctx, StartConversationInput{StarterID: f.alice, ParticipantID: f.alice, InitialMessage: "hi"})
	assert.ErrorIs(t, err, benome_errors.ErrValidation)

	_, err = f.svc.StartConversation(ctx, StartConversationInput{StarterID: f.alice, ParticipantID: f.bob, InitialMessage: " "})
	assert.ErrorIs(t, err, benome_errors.ErrValidation)
}

func TestStartConversationUnknownParticipant(t *testing.T) {
	f := newConversationFixture(t)
	f.users.EXPECT().GetByID(gomock.Any(), f.bob).Return(user.User{}, benome_errors.New(benome_errors.ErrNotFound, "user not found"))

	_, err := f.svc.StartConversation(context.Background(), StartConversationInput{
		StarterID:      f.alice,
		ParticipantID:  f.bob,
		InitialMessage: "hi",
	})
	assert.ErrorIs(t, err, benome_errors.ErrNotFound)
	assert.Equal(t, "user not found", benome_errors.Message(err))
}

func TestStartConversationReusesExisting(t *testing.T) {
	f := newConversationFixture(t)
	existing := conversation.Conversation{ID: uuid.New(), Participant1ID: f.bob, Participant2ID: f.alice, UpdatedAt: time.Now()}

	f.users.EXPECT().GetByID(gomock.Any(), f.bob).Return(user.User{ID: f.bob}, nil)
	f.conversations.EXPECT().FindBetween(gomock.Any(), f.alice, f.bob, uuid.NullUUID{}).Return(existing, nil)
	f.expectSendInto(existing.ID)

	res, err := f.svc.StartConversation(context.Background(), StartConversationInput{
		StarterID:      f.alice,
		ParticipantID:  f.bob,
		InitialMessage: "still for sale?",
	})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, existing.ID, res.Conversation.ID)
	assert.Equal(t, existing.ID, res.Message.ConversationID)
	assert.Equal(t, "still for sale?", res.Message.Content)
}

func TestStartConversationCreatesWithListing(t *testing.T) {
	f := newConversationFixture(t)
	listing := uuid.NullUUID{UUID: uuid.New(), Valid: true}

	var created conversation.Conversation
	f.users.EXPECT().GetByID(gomock.Any(), f.bob).Return(user.User{ID: f.bob}, nil)
	f.conversations.EXPECT().FindBetween(gomock.Any(), f.alice, f.bob, listing).
		Return(conversation.Conversation{}, benome_errors.New(benome_errors.ErrNotFound, "conversation not found"))
	f.conversations.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c *conversation.Conversation) error {
			created = *c
			return nil
		})
	f.conversations.EXPECT().IsParticipant(gomock.Any(), gomock.Any(), f.alice).Return(true, nil)
	f.messages.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	f.conversations.EXPECT().UpdateLastMessage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, convID, _ uuid.UUID, _ time.Time) (conversation.Conversation, error) {
			return created, nil
		})

	res, err := f.svc.StartConversation(context.Background(), StartConversationInput{
		StarterID:      f.alice,
		ParticipantID:  f.bob,
		ListingID:      listing,
		InitialMessage: "hello",
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, listing, res.Conversation.ListingID)
	assert.Equal(t, f.alice, res.Conversation.Participant1ID)
	assert.Equal(t, f.bob, res.Conversation.Participant2ID)
	assert.Len(t, f.broadcaster.all(), 2)
}

func TestStartConversationLostRaceReusesWinner(t *testing.T) {
	f := newConversationFixture(t)
	winner := conversation.Conversation{ID: uuid.New(), Participant1ID: f.bob, Participant2ID: f.alice}

	f.users.EXPECT().GetByID(gomock.Any(), f.bob).Return(user.User{ID: f.bob}, nil)
	gomock.InOrder(
		f.conversations.EXPECT().FindBetween(gomock.Any(), f.alice, f.bob, uuid.NullUUID{}).
			Return(conversation.Conversation{}, benome_errors.New(benome_errors.ErrNotFound, "conversation not found")),
		f.conversations.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(benome_errors.New(benome_errors.ErrConflict, "conversation already exists")),
		f.conversations.EXPECT().FindBetween(gomock.Any(), f.alice, f.bob, uuid.NullUUID{}).Return(winner, nil),
	)
	f.expectSendInto(winner.ID)

	res, err := f.svc.StartConversation(context.Background(), StartConversationInput{
		StarterID:      f.alice,
		ParticipantID:  f.bob,
		InitialMessage: "hi",
	})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, winner.ID, res.Conversation.ID)
}
